package cli

import (
	"context"
	"fmt"

	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/app"
	"github.com/existflow/instafeed/internal/model"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Update your profile",
	Long: `Update your display name or profile image.

Examples:
  instafeed profile name "Ada"
  instafeed profile avatar https://example.com/me.png
  instafeed profile avatar --clear`,
}

var profileNameCmd = &cobra.Command{
	Use:   "name [display-name]",
	Short: "Set your display name",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileName,
}

var profileAvatarCmd = &cobra.Command{
	Use:   "avatar [image-url]",
	Short: "Set your profile image",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfileAvatar,
}

var avatarClear bool

func init() {
	profileCmd.AddCommand(profileNameCmd)
	profileCmd.AddCommand(profileAvatarCmd)

	profileAvatarCmd.Flags().BoolVar(&avatarClear, "clear", false, "Remove the profile image")
}

func runProfileName(cmd *cobra.Command, args []string) error {
	return withLogin(cmd, func(ctx context.Context, a *app.App) error {
		name := args[0]
		echoed, err := a.API.UpdateMe(ctx, model.UserPatch{Name: &name})
		if err != nil {
			return fmt.Errorf("failed to update profile: %s", api.UserMessage(err))
		}
		if echoed != nil && echoed.Name != "" {
			name = echoed.Name
		}
		user, err := a.Auth.SetUser(ctx, model.UserPatch{Name: &name})
		if err != nil {
			return err
		}
		fmt.Printf("✅ Name set to %s\n", user.DisplayName())
		return nil
	})
}

func runProfileAvatar(cmd *cobra.Command, args []string) error {
	url := ""
	switch {
	case avatarClear:
	case len(args) == 1:
		url = args[0]
	default:
		return fmt.Errorf("give an image URL or --clear")
	}
	return withLogin(cmd, func(ctx context.Context, a *app.App) error {
		if _, err := a.Auth.UpdateProfileImage(ctx, url); err != nil {
			return fmt.Errorf("failed to update profile image: %s", api.UserMessage(err))
		}
		if url == "" {
			fmt.Println("✅ Profile image removed")
		} else {
			fmt.Println("✅ Profile image updated")
		}
		return nil
	})
}
