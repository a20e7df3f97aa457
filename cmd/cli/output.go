package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	bold    = color.New(color.Bold)
	success = color.New(color.FgGreen)
	failure = color.New(color.FgRed)
	info    = color.New(color.FgCyan)
)

func printSuccess(format string, args ...interface{}) {
	success.Printf("✓ "+format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	info.Printf(format+"\n", args...)
}

func printError(err error) {
	failure.Fprintf(os.Stderr, "Error: %v\n", err)
}

func printHeader(format string, args ...interface{}) {
	bold.Println(fmt.Sprintf(format, args...))
}
