package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "gerrit-reviewer",
		Short: "Gerrit Claude Reviewer - automated code review service",
		Long: `Gerrit Claude Reviewer watches a Gerrit instance for open changes,
summarizes each change worth reviewing, asks the Claude CLI for a review,
and posts the result back to Gerrit. Each change is reviewed at most once.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
