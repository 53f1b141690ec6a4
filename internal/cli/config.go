package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/existflow/instafeed/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show or change the settings in ~/.instafeed/config.yaml.

Examples:
  instafeed config                                  # Show settings
  instafeed config set server_url https://feed.example.com
  instafeed config set session_backend sqlite
  instafeed config path`,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(config.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	shown := *cfg
	if shown.SessionPassphrase != "" {
		shown.SessionPassphrase = "********"
	}
	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := strings.ToLower(args[0]), args[1]

	duration := func(dst *time.Duration) error {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	var err error
	switch key {
	case "server_url":
		cfg.ServerURL = strings.TrimRight(value, "/")
	case "session_backend":
		cfg.SessionBackend = value
	case "session_path":
		cfg.SessionPath = value
	case "session_passphrase":
		cfg.SessionPassphrase = value
	case "redis_addr":
		cfg.RedisAddr = value
	case "log_level":
		cfg.LogLevel = strings.ToUpper(value)
	case "read_retries":
		n, convErr := strconv.Atoi(value)
		if convErr != nil || n < 0 {
			return fmt.Errorf("read_retries must be a non-negative number")
		}
		cfg.ReadRetries = n
	case "request_timeout":
		err = duration(&cfg.RequestTimeout)
	case "feed_cache_ttl":
		err = duration(&cfg.FeedCacheTTL)
	case "comment_cache_ttl":
		err = duration(&cfg.CommentCacheTTL)
	case "scroll_debounce":
		err = duration(&cfg.ScrollDebounce)
	case "auto_refresh":
		err = duration(&cfg.AutoRefresh)
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Printf("✓ %s = %s\n", key, value)
	return nil
}
