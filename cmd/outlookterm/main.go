package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"outlookterm/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "outlookterm",
	Short: "A terminal client for your Outlook inbox",
	Long: `outlookterm shows the 50 most recent messages in your Outlook inbox.

Sign-in is attempted silently first; when that is not possible a browser
sign-in is started. Press r to refresh, tab to switch panes, o to open the
selected message in the browser and q to quit.

Examples:
  outlookterm
  outlookterm list
  outlookterm cached
  outlookterm logout
  OUTLOOKTERM_CLIENT_ID=<id> outlookterm`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Fetch the inbox and print it without the TUI",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var cachedCmd = &cobra.Command{
	Use:   "cached",
	Short: "Print the last fetched inbox page without going online",
	Args:  cobra.NoArgs,
	RunE:  runCached,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored sign-in and the cached inbox",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to config.yaml")
	rootCmd.AddCommand(listCmd, cachedCmd, logoutCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
