package main

import (
	"bufio"
	"errors"
	"flag"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"textchat/config"
	"textchat/db"
	"textchat/server"
	"textchat/store"
	"time"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
)

func main() {
	profileMode := flag.String("profile", "", "enable profiling: cpu, mem, block or mutex")
	flag.Parse()

	cfg := config.Load()
	if flag.NArg() > 0 {
		port, err := strconv.Atoi(flag.Arg(0))
		if err != nil {
			logrus.Fatalf("Invalid port %q", flag.Arg(0))
		}
		cfg.Port = port
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	setupLogging(cfg)

	if stopper := startProfiling(*profileMode); stopper != nil {
		defer stopper.Stop()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logrus.Fatalf("Failed to create data directory: %v", err)
	}
	database, err := db.New(cfg.DBPath)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	seedAccounts(database, cfg.AccountsFile)

	creds := store.NewSQLCredentials(database)
	friends, err := openFriendStore(cfg, database, creds)
	if err != nil {
		logrus.Fatalf("Failed to open friend store: %v", err)
	}
	history, err := store.NewHistoryStore(cfg.HistoryDir)
	if err != nil {
		logrus.Fatalf("Failed to open history store: %v", err)
	}

	srvConfig := &server.ServerConfig{
		Port:         cfg.Port,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		LoginRate:    cfg.LoginRate,
		LoginBurst:   cfg.LoginBurst,
	}
	srv := server.New(creds, friends, history, srvConfig)

	if cfg.ControlSocket != "" {
		go startControlSocket(srv, cfg.ControlSocket)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logrus.Infof("Received signal %v, shutting down...", sig)
		srv.Shutdown("server shutting down")
	}()

	if err := srv.Start(); err != nil {
		logrus.Fatalf("Server failed: %v", err)
	}
	if cfg.ControlSocket != "" {
		os.Remove(cfg.ControlSocket)
	}
}

func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Warnf("Unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func startProfiling(mode string) interface{ Stop() } {
	var opt func(*profile.Profile)
	switch mode {
	case "":
		return nil
	case "cpu":
		opt = profile.CPUProfile
	case "mem":
		opt = profile.MemProfile
	case "block":
		opt = profile.BlockProfile
	case "mutex":
		opt = profile.MutexProfile
	default:
		logrus.Warnf("Unknown profile mode %q, profiling disabled", mode)
		return nil
	}
	return profile.Start(opt, profile.ProfilePath("."), profile.NoShutdownHook)
}

// seedAccounts upserts the accounts from the seed file. A missing file only
// leaves the existing accounts in place.
func seedAccounts(database *db.DB, path string) {
	accounts, err := config.LoadAccounts(path)
	if errors.Is(err, fs.ErrNotExist) {
		logrus.Warnf("Account file %s not found, using accounts already in the database", path)
		return
	}
	if err != nil {
		logrus.Fatalf("Failed to load accounts: %v", err)
	}
	if err := database.SeedUsers(accounts); err != nil {
		logrus.Fatalf("Failed to seed accounts: %v", err)
	}
	logrus.Infof("Seeded %d accounts from %s", len(accounts), path)
}

func openFriendStore(cfg *config.Config, database *db.DB, creds store.Credentials) (store.FriendStore, error) {
	if cfg.FriendBackend == config.FriendBackendSQLite {
		return store.NewSQLFriendStore(database), nil
	}
	accounts, err := creds.Accounts()
	if err != nil {
		return nil, err
	}
	return store.NewFileFriendStore(cfg.FriendsFile, accounts)
}

func startControlSocket(srv *server.Server, path string) {
	// Remove existing socket file
	os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		logrus.Warnf("Failed to create control socket: %v", err)
		return
	}
	defer listener.Close()

	logrus.Infof("Control socket listening on %s", path)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		go handleControlCommand(srv, conn)
	}
}

// handleControlCommand serves one "stats" or "shutdown|reason" line.
func handleControlCommand(srv *server.Server, conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return
	}

	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), "|")

	switch cmd {
	case "stats":
		conn.Write([]byte("OK|" + srv.Stats() + "\n"))

	case "shutdown":
		reason := "maintenance"
		if arg != "" {
			reason = arg
		}

		conn.Write([]byte("OK|Shutting down\n"))
		logrus.Infof("Shutdown requested: reason=%s", reason)
		srv.Shutdown(reason)

	default:
		conn.Write([]byte("ERROR|Unknown command\n"))
	}
}
