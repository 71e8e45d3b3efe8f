package main

import (
	"fmt"
	"os"

	"docsync/config"
	"docsync/internal/apiclient"
	"docsync/pkg/logger"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	apiURL   string
	token    string
	logLevel string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docctl",
	Short: "docctl: browse and edit docsync folders and documents",
	Long: `docctl is a client for the docsync server. The shell subcommand keeps a live
session whose folder view, document view and recent history stay consistent
with deletions made here or by any other connected client.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(logLevel)
		c, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		f := cmd.Flags()
		if f.Changed("api-url") {
			c.APIURL = apiURL
		}
		if f.Changed("token") {
			c.Token = token
		}
		if c.ClientID == "" {
			c.ClientID = uuid.NewString()
		}
		cfg = c
		return nil
	},
}

// Execute is the entry point called by main.main()
func Execute() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "bearer token (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "error", "log level written to stdout")
}

func newClient() *apiclient.Client {
	return apiclient.New(cfg.APIURL, cfg.Token, cfg.ClientID, nil)
}
