package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/app"
	"github.com/existflow/instafeed/internal/model"
	"github.com/spf13/cobra"
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create, edit or delete posts",
	Long: `Manage your posts.

Examples:
  instafeed post create "Sunset at the beach" --image https://example.com/a.jpg
  instafeed post show 12
  instafeed post edit 12 "Sunrise, actually"
  instafeed post delete 12`,
}

var postCreateCmd = &cobra.Command{
	Use:   "create [content]",
	Short: "Share a new post",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPostCreate,
}

var postShowCmd = &cobra.Command{
	Use:   "show [post-id]",
	Short: "Show one post",
	Args:  cobra.ExactArgs(1),
	RunE:  runPostShow,
}

var postEditCmd = &cobra.Command{
	Use:   "edit [post-id] [content]",
	Short: "Change a post's content",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runPostEdit,
}

var postDeleteCmd = &cobra.Command{
	Use:     "delete [post-id]",
	Aliases: []string{"rm"},
	Short:   "Delete a post",
	Args:    cobra.ExactArgs(1),
	RunE:    runPostDelete,
}

var postImage string

func init() {
	postCmd.AddCommand(postCreateCmd)
	postCmd.AddCommand(postShowCmd)
	postCmd.AddCommand(postEditCmd)
	postCmd.AddCommand(postDeleteCmd)

	postCreateCmd.Flags().StringVarP(&postImage, "image", "i", "", "Image URL")
	postEditCmd.Flags().StringVarP(&postImage, "image", "i", "", "Replace the image as well")
}

func runPostCreate(cmd *cobra.Command, args []string) error {
	return withLogin(cmd, func(ctx context.Context, a *app.App) error {
		in := model.PostInput{Content: strings.Join(args, " "), PostImg: postImage}
		p, err := a.Feed.Create(ctx, in)
		if err != nil {
			return fmt.Errorf("failed to create post: %s", api.UserMessage(err))
		}
		fmt.Printf("✓ Posted #%d: \"%s\"\n", p.PostID, p.Content)
		return nil
	})
}

func runPostShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withLogin(cmd, func(ctx context.Context, a *app.App) error {
		p, err := a.Feed.Ensure(ctx, id)
		if err != nil {
			return fmt.Errorf("post #%d: %s", id, api.UserMessage(err))
		}
		printPost(p)
		fmt.Println()
		fmt.Println(p.Content)
		if len(p.LikedBy) > 0 {
			fmt.Printf("\n♥ %s\n", strings.Join(p.LikedBy, ", "))
		}
		return nil
	})
}

func runPostEdit(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	content := strings.Join(args[1:], " ")
	return withLogin(cmd, func(ctx context.Context, a *app.App) error {
		if _, err := a.Feed.Ensure(ctx, id); err != nil {
			return fmt.Errorf("post #%d: %s", id, api.UserMessage(err))
		}
		if cmd.Flags().Changed("image") {
			err = a.Feed.Replace(ctx, id, model.PostInput{Content: content, PostImg: postImage})
		} else {
			err = a.Feed.Update(ctx, id, content)
		}
		if err != nil {
			return fmt.Errorf("failed to edit post #%d: %s", id, api.UserMessage(err))
		}
		fmt.Printf("✓ Updated #%d\n", id)
		return nil
	})
}

func runPostDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withLogin(cmd, func(ctx context.Context, a *app.App) error {
		if _, err := a.Feed.Ensure(ctx, id); err != nil {
			return fmt.Errorf("post #%d: %s", id, api.UserMessage(err))
		}
		if err := a.Feed.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete post #%d: %s", id, api.UserMessage(err))
		}
		fmt.Printf("🗑  Deleted #%d\n", id)
		return nil
	})
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
