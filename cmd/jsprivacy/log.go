package main

import (
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// newLoggers returns the error, warning, info and debug loggers. Warnings need one -v, info two
// and debug three. Prefixes are colored when w is a terminal.
func newLoggers(w io.Writer, quiet bool, verbose int) (*log.Logger, *log.Logger, *log.Logger, *log.Logger) {
	errorLog := log.New(io.Discard, "", 0)
	warningLog := log.New(io.Discard, "", 0)
	infoLog := log.New(io.Discard, "", 0)
	debugLog := log.New(io.Discard, "", 0)
	if quiet {
		return errorLog, warningLog, infoLog, debugLog
	}

	colored := false
	if f, ok := w.(*os.File); ok {
		colored = os.Getenv("NO_COLOR") == "" && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
	}
	prefix := func(s string, attr color.Attribute) string {
		if !colored {
			return s
		}
		c := color.New(attr)
		c.EnableColor()
		return c.Sprint(s)
	}

	errorLog = log.New(w, prefix("ERROR: ", color.FgRed), 0)
	if 0 < verbose {
		warningLog = log.New(w, prefix("WARNING: ", color.FgYellow), 0)
	}
	if 1 < verbose {
		infoLog = log.New(w, prefix("INFO: ", color.FgBlue), 0)
	}
	if 2 < verbose {
		debugLog = log.New(w, prefix("DEBUG: ", color.FgHiBlack), 0)
	}
	return errorLog, warningLog, infoLog, debugLog
}
