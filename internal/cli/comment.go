package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/existflow/instafeed/internal/api"
	"github.com/existflow/instafeed/internal/app"
	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:     "comment",
	Aliases: []string{"comments"},
	Short:   "Read and write comments",
	Long: `Read and write comments on a post.

Examples:
  instafeed comment list 12
  instafeed comment add 12 "Great shot"
  instafeed comment delete 12 40`,
}

var commentListCmd = &cobra.Command{
	Use:     "list [post-id]",
	Aliases: []string{"ls"},
	Short:   "List a post's comments",
	Args:    cobra.ExactArgs(1),
	RunE:    runCommentList,
}

var commentAddCmd = &cobra.Command{
	Use:   "add [post-id] [text]",
	Short: "Comment on a post",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCommentAdd,
}

var commentDeleteCmd = &cobra.Command{
	Use:     "delete [post-id] [comment-id]",
	Aliases: []string{"rm"},
	Short:   "Delete one of your comments",
	Args:    cobra.ExactArgs(2),
	RunE:    runCommentDelete,
}

func init() {
	commentCmd.AddCommand(commentListCmd)
	commentCmd.AddCommand(commentAddCmd)
	commentCmd.AddCommand(commentDeleteCmd)
}

func runCommentList(cmd *cobra.Command, args []string) error {
	postID, err := parseID(args[0])
	if err != nil {
		return err
	}
	// Reading comments does not need a session.
	return withApp(cmd, func(ctx context.Context, a *app.App) error {
		list, err := a.Comments.List(ctx, postID, true)
		if err != nil {
			return fmt.Errorf("failed to load comments: %s", api.UserMessage(err))
		}
		if len(list) == 0 {
			fmt.Printf("No comments on #%d yet.\n", postID)
			return nil
		}

		fmt.Printf("\n💬 #%d (%d comments)\n", postID, len(list))
		fmt.Println(strings.Repeat("─", 60))
		for _, c := range list {
			when := ""
			if !c.CreatedAt.IsZero() {
				when = humanize.Time(c.CreatedAt)
			}
			fmt.Printf("  %-5d %-20s %s  %s\n", c.ID, c.UserID, c.Comment, when)
		}
		fmt.Println()
		return nil
	})
}

func runCommentAdd(cmd *cobra.Command, args []string) error {
	postID, err := parseID(args[0])
	if err != nil {
		return err
	}
	text := strings.Join(args[1:], " ")
	return withLogin(cmd, func(ctx context.Context, a *app.App) error {
		c, err := a.Comments.Add(ctx, postID, text)
		if err != nil {
			return fmt.Errorf("failed to comment: %s", api.UserMessage(err))
		}
		fmt.Printf("💬 Comment %d added to #%d\n", c.ID, postID)
		return nil
	})
}

func runCommentDelete(cmd *cobra.Command, args []string) error {
	postID, err := parseID(args[0])
	if err != nil {
		return err
	}
	commentID, err := parseID(args[1])
	if err != nil {
		return err
	}
	return withLogin(cmd, func(ctx context.Context, a *app.App) error {
		if err := a.Comments.Delete(ctx, postID, commentID); err != nil {
			return fmt.Errorf("failed to delete comment: %s", api.UserMessage(err))
		}
		fmt.Printf("🗑  Deleted comment %d\n", commentID)
		return nil
	})
}
