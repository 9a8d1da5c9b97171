package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stock-scanner/internal/config"
	"stock-scanner/internal/logging"
	"stock-scanner/internal/orchestrator"
	"stock-scanner/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2025-06-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  *store.SQLiteStore
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize store, some features may be unavailable")
	} else {
		app.Store = st
		logger.Debug().Str("path", cfg.Database.Path).Msg("SQLite store initialized")
	}

	rootCmd := &cobra.Command{
		Use:   "stockscan",
		Short: "Stock Scanner - AI-powered stock analysis service",
		Long: `Stock Scanner analyzes stocks with technical indicators and AI narration.

It serves a streaming NDJSON analysis API over HTTP and can run one-off
analyses directly from the terminal. Supported markets: A-shares, US,
Hong Kong, ETF and LOF funds.

Use 'stockscan help <command>' for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stock-scanner)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newAnalyzeCmd(app))
	rootCmd.AddCommand(newPresetsCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Stock Scanner v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and manage application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Server Configuration")
	output.Printf("  Listen Addr:     %s\n", cfg.Server.Addr)
	output.Printf("  Rate Limit:      %d req/s (burst %d)\n", cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst)
	output.Println()

	output.Bold("API Configuration")
	output.Printf("  URL:             %s\n", cfg.API.URL)
	output.Printf("  Model:           %s\n", cfg.API.Model)
	output.Printf("  Timeout:         %ss\n", cfg.API.Timeout)
	if cfg.API.Key != "" {
		output.Printf("  Key:             %s\n", "(configured)")
	} else {
		output.Printf("  Key:             %s\n", output.Yellow("(not set)"))
	}
	output.Println()

	output.Bold("Database")
	output.Printf("  Path:            %s\n", cfg.Database.Path)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:           %s\n", cfg.Logging.Level)
	output.Printf("  Console:         %v\n", cfg.Logging.Console)
	output.Printf("  File:            %v\n", cfg.Logging.File)
	output.Printf("  File Path:       %s\n", cfg.Logging.FilePath)

	return nil
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List analysis presets",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			presets := orchestrator.ListPresets()
			if output.IsJSON() {
				output.JSON(presets)
				return
			}
			table := NewTable(output, "ID", "NAME", "MULTI-ROLE", "ENABLED")
			for _, p := range presets {
				multiRole := ""
				if p.MultiRole {
					multiRole = "yes"
				}
				enabled := "yes"
				if !p.Enabled {
					enabled = "no"
				}
				table.AddRow(p.ID, p.Name, multiRole, enabled)
			}
			table.Render()
		},
	}
}
