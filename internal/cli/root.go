package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/instafeed/internal/app"
	"github.com/existflow/instafeed/internal/config"
	"github.com/existflow/instafeed/internal/logger"
	"github.com/existflow/instafeed/internal/tui"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFile    string
	logConsole bool
	serverURL  string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "instafeed",
	Short: "Instafeed - photo feed in your terminal",
	Long: `Instafeed is a terminal client for the Instafeed photo feed:
browse posts, like them and join the comments.

Run 'instafeed' without arguments to launch the interactive TUI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config from file (or defaults if not exists)
		loaded, err := config.Load()
		if err != nil {
			logger.Warn("Failed to load config, using defaults", logger.F("error", err))
			loaded = config.DefaultConfig()
		}
		cfg = loaded

		// Override with CLI flags if provided
		configChanged := false
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
			configChanged = true
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
			configChanged = true
		}
		if cmd.Flags().Changed("log-console") {
			cfg.LogConsole = logConsole
			configChanged = true
		}
		if cmd.Flags().Changed("server") {
			// One-off override, not persisted
			cfg.ServerURL = serverURL
		}

		// Save config if changed via CLI flags
		if configChanged {
			if err := cfg.Save(); err != nil {
				logger.Warn("Failed to save config", logger.F("error", err))
			}
		}

		logConfig := logger.Config{
			Level:      logger.ParseLevel(cfg.LogLevel),
			FilePath:   cfg.LogFile,
			MaxSize:    10 * 1024 * 1024, // 10MB
			MaxAge:     7,
			MaxBackups: 5,
			Console:    cfg.LogConsole,
		}

		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.Info("Instafeed started", logger.F("command", cmd.Name()), logger.F("server", cfg.ServerURL))
		return nil
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() {
			_ = a.Close()
			logger.Info("Client closed")
		}()

		logger.Info("Launching TUI")
		m := tui.NewModel(a)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))

		if _, err := p.Run(); err != nil {
			logger.Error("TUI error", logger.F("error", err))
			return fmt.Errorf("failed to run TUI: %w", err)
		}

		logger.Info("TUI exited normally")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("Instafeed exiting", logger.F("command", cmd.Name()))
		_ = logger.Close()
	},
}

// Execute runs the root command. Ctrl-C cancels in-flight requests.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// openApp builds the client and settles the stored session
func openApp(ctx context.Context) (*app.App, error) {
	a, err := app.New(cfg)
	if err != nil {
		logger.Error("Failed to build client", logger.F("error", err))
		return nil, err
	}
	if _, err := a.Start(ctx); err != nil {
		// Offline or server down: continue unauthenticated.
		logger.Warn("Session check failed", logger.F("error", err))
	}
	return a, nil
}

// withApp runs fn against a started client
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.Close()
	}()
	return fn(ctx, a)
}

// withLogin is withApp for commands that need a session
func withLogin(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if !a.Auth.IsAuthenticated() {
			return fmt.Errorf("not logged in, run: instafeed auth login")
		}
		return fn(ctx, a)
	})
}

func init() {
	// Add logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL for this run")

	// Add subcommands
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(likeCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(clearCmd)
}
