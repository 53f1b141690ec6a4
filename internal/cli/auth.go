package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/app"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication",
	Long:  `Log in to, log out of, or create an account on the feed server.`,
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the feed server",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the stored session",
	RunE:  runLogout,
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create a new account on the feed server",
	RunE:  runRegister,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE:  runWhoami,
}

func init() {
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(registerCmd)

	loginCmd.Flags().String("email", "", "Email to log in with (prompted when empty)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		reader := bufio.NewReader(os.Stdin)

		email, _ := cmd.Flags().GetString("email")
		if email == "" {
			email = prompt(reader, "Email: ")
		}
		password := promptPassword("Password: ")

		fmt.Println("🔄 Logging in...")
		user, err := a.Auth.Login(ctx, email, password)
		if err != nil {
			return errors.New(api.UserMessage(err))
		}

		fmt.Printf("✅ Logged in as %s\n", user.DisplayName())
		return nil
	})
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		if !a.Auth.IsAuthenticated() {
			fmt.Println("Not logged in.")
			return nil
		}

		fmt.Println("🔄 Logging out...")
		if err := a.Auth.Logout(ctx); err != nil {
			return err
		}

		fmt.Println("✅ Logged out successfully.")
		return nil
	})
}

func runRegister(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		reader := bufio.NewReader(os.Stdin)

		name := prompt(reader, "Name: ")
		email := prompt(reader, "Email: ")
		password := promptPassword("Password: ")
		confirm := promptPassword("Confirm Password: ")

		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}

		fmt.Println("🔄 Creating account...")
		user, err := a.Auth.Register(ctx, email, password, name)
		if err != nil {
			return errors.New(api.UserMessage(err))
		}

		fmt.Printf("✅ Account created, logged in as %s\n", user.DisplayName())
		return nil
	})
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		user, ok := a.Auth.User()
		if !ok {
			fmt.Println("Not logged in.")
			return nil
		}
		fmt.Printf("👤 %s <%s>\n", user.DisplayName(), user.Email)
		if user.ProfileImg != nil {
			fmt.Printf("🖼  %s\n", *user.ProfileImg)
		}
		fmt.Printf("🌐 %s\n", a.Config.ServerURL)
		return nil
	})
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptPassword(label string) string {
	fmt.Print(label)
	passwordBytes, _ := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	return string(passwordBytes)
}
