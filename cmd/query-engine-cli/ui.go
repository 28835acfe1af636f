// Package main provides UI utilities for the query engine CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
)

// UI provides user-friendly output utilities. In JSON mode all decorative
// output is suppressed and results are printed as JSON.
type UI struct {
	jsonMode bool
}

// NewUI creates a new UI instance.
func NewUI(jsonMode bool) *UI {
	return &UI{jsonMode: jsonMode}
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	color.New(color.FgGreen).Printf("✓ %s\n", fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (ui *UI) Error(format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	color.New(color.FgRed).Fprintf(os.Stderr, "✗ %s\n", fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (ui *UI) Warn(format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	color.New(color.FgYellow).Printf("⚠ %s\n", fmt.Sprintf(format, args...))
}

// Info prints an informational message.
func (ui *UI) Info(format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	color.New(color.FgCyan).Printf("ℹ %s\n", fmt.Sprintf(format, args...))
}

// Header prints a section header.
func (ui *UI) Header(title string) {
	if ui.jsonMode {
		return
	}
	color.New(color.FgMagenta, color.Bold).Printf("━━━ %s ━━━\n", title)
}

// KeyValue prints an aligned key/value pair.
func (ui *UI) KeyValue(key string, value interface{}) {
	if ui.jsonMode {
		return
	}
	color.New(color.FgYellow).Printf("  %s: ", key)
	fmt.Printf("%v\n", value)
}

// JSON prints v as indented JSON when JSON mode is active and reports
// whether it did.
func (ui *UI) JSON(v interface{}) bool {
	if !ui.jsonMode {
		return false
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal output: %v\n", err)
		return true
	}
	fmt.Println(string(data))
	return true
}
