package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for wordspider.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wordspider",
		Short: "Custom word list generator for password auditing",
		Long: `wordspider crawls a website and turns its text into a word list.

Words, e-mail addresses and visited URLs are collected from HTML pages and,
optionally, from JavaScript, CSS, PDF documents and image metadata. Links are
followed up to a depth limit and within a subdomain scope.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging and progress output")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag reads --verbose from the command or its parents.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return false
	}
	return verbose
}
