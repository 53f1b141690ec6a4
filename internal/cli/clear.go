package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/existflow/instafeed/internal/app"
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the stored session",
	Long: `Forget the session stored on this machine.

By default the server is not contacted, which works offline. With --remote
the session is also revoked on the server first.`,
	RunE: runClear,
}

func init() {
	clearCmd.Flags().Bool("remote", false, "Revoke the session on the server too")
	clearCmd.Flags().Bool("force", false, "Do not ask for confirmation")
}

func runClear(cmd *cobra.Command, args []string) error {
	remote, _ := cmd.Flags().GetBool("remote")
	force, _ := cmd.Flags().GetBool("force")

	if !force {
		fmt.Printf("Are you sure you want to clear the stored session? (y/N): ")
		var response string
		_, _ = fmt.Scanln(&response)
		if strings.ToLower(response) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if remote {
			if !a.Auth.IsAuthenticated() {
				fmt.Println("Skipping remote revoke: not logged in.")
			} else {
				fmt.Println("🌐 Revoking session on the server...")
				// Logout clears locally even when the server call fails.
				if err := a.Auth.Logout(ctx); err != nil {
					return fmt.Errorf("failed to log out: %w", err)
				}
			}
		}

		fmt.Println("🧹 Clearing local session...")
		if err := a.Store.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		a.API.SetToken("")
		fmt.Println("Local session cleared.")
		return nil
	})
}
