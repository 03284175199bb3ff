package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	header = color.New(color.FgCyan, color.Bold)
	warn   = color.New(color.FgYellow)
	bad    = color.New(color.FgRed, color.Bold)
	good   = color.New(color.FgGreen)
)

func printError(cmd *cobra.Command, title string, err error) error {
	w := cmd.ErrOrStderr()
	bad.Fprintf(w, "%s\n", title)
	fmt.Fprintf(w, "  %v\n", err)
	return fmt.Errorf("%s: %w", title, err)
}

func printHeader(cmd *cobra.Command, format string, a ...any) {
	header.Fprintf(cmd.OutOrStdout(), format+"\n", a...)
}
