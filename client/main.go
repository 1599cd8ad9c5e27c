package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"textchat/client/ui"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [host] [port]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	host, port := "localhost", "9000"
	if flag.NArg() > 0 {
		host = flag.Arg(0)
	}
	if flag.NArg() > 1 {
		port = flag.Arg(1)
	}

	app := ui.NewApp(net.JoinHostPort(host, port))
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
