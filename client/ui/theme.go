package ui

import "github.com/gdamore/tcell/v2"

// Colors - blue panels with cyan frames
var (
	ColorBg        = tcell.NewRGBColor(0, 0, 128)     // panel background
	ColorFieldBg   = tcell.NewRGBColor(0, 0, 64)      // input fields
	ColorBar       = tcell.NewRGBColor(0, 128, 128)   // key bars and buttons
	ColorFg        = tcell.NewRGBColor(192, 192, 192) // body text
	ColorBorder    = tcell.NewRGBColor(0, 255, 255)   // frames
	ColorTitle     = tcell.NewRGBColor(255, 255, 255) // titles
	ColorHighlight = tcell.NewRGBColor(0, 255, 255)   // labels
	ColorShade     = tcell.NewRGBColor(64, 64, 64)    // backdrop behind dialogs
)
