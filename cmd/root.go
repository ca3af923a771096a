package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/issuetracker/internal/client"
	"github.com/joescharf/issuetracker/internal/output"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "issuetracker",
	Short: "Issue tracker - a small per-project issue API",
	Long: `issuetracker runs an HTTP API that stores issues per project in memory,
and talks to a running server from the command line or over MCP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/issuetracker/config.yaml)")
	rootCmd.PersistentFlags().String("api-url", "", "Base URL of a running server (default http://localhost:3000)")
	_ = viper.BindPFlag("api_url", rootCmd.PersistentFlags().Lookup("api-url"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ISSUETRACKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// Config file is optional.
	_ = viper.ReadInConfig()
}

// setDefaults registers the default for every config key.
func setDefaults() {
	stateDir, _ := configDirFunc()

	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("port", 3000)
	viper.SetDefault("api_url", "http://localhost:3000")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("rate_limit", "")
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("metrics.enabled", true)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun
}

// apiClient returns a client for the configured server.
func apiClient() *client.Client {
	url := viper.GetString("api_url")
	ui.VerboseLog("API: %s", url)
	return client.New(url)
}

// stateDir returns the directory holding runtime files, creating it.
func stateDir() (string, error) {
	dir := viper.GetString("state_dir")
	if dir == "" {
		var err error
		if dir, err = configDirFunc(); err != nil {
			return "", err
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state dir: %w", err)
	}
	return filepath.Clean(dir), nil
}
