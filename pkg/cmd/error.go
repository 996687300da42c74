// Package cmd provides small helpers shared by the ubtc and ubts entry
// points: colored diagnostics and a Cobra entry point adapter. Adapted from
// the teacher's top-level cmd package.
package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Warning prints a warning message to standard error.
func Warning(message string) {
	fmt.Fprintln(color.Error, color.YellowString("Warning:"), message)
}

// Error prints an error message to standard error.
func Error(err error) {
	fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
}

// Fatal prints an error message to standard error and terminates the process
// with a non-zero exit code, matching spec.md §6's exit code contract.
func Fatal(err error) {
	Error(err)
	os.Exit(1)
}
