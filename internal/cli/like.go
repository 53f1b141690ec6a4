package cli

import (
	"context"
	"fmt"

	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/app"
	"github.com/spf13/cobra"
)

var likeCmd = &cobra.Command{
	Use:   "like [post-id]",
	Short: "Like or unlike a post",
	Long: `Toggle your like on a post.

Examples:
  instafeed like 12`,
	Args: cobra.ExactArgs(1),
	RunE: runLike,
}

func runLike(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return withLogin(cmd, func(ctx context.Context, a *app.App) error {
		if _, err := a.Feed.Ensure(ctx, id); err != nil {
			return fmt.Errorf("post #%d: %s", id, api.UserMessage(err))
		}
		res, err := a.Likes.Toggle(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to like post #%d: %s", id, api.UserMessage(err))
		}
		if res.Liked {
			fmt.Printf("♥ Liked #%d (%d likes)\n", id, res.TotalLikes)
		} else {
			fmt.Printf("♡ Unliked #%d (%d likes)\n", id, res.TotalLikes)
		}
		return nil
	})
}
