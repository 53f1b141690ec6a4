package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/existflow/instafeed/internal/app"
	"github.com/existflow/instafeed/internal/model"
	"github.com/spf13/cobra"
)

var feedCmd = &cobra.Command{
	Use:     "feed",
	Aliases: []string{"ls"},
	Short:   "Show the feed",
	Long: `Show the newest posts, one page at a time.

Examples:
  instafeed feed
  instafeed feed --pages 3
  instafeed feed --all`,
	RunE: runFeed,
}

var (
	feedPages int
	feedAll   bool
)

func init() {
	feedCmd.Flags().IntVarP(&feedPages, "pages", "n", 1, "Number of pages to load")
	feedCmd.Flags().BoolVarP(&feedAll, "all", "a", false, "Load until the feed is exhausted")
}

func runFeed(cmd *cobra.Command, args []string) error {
	return withLogin(cmd, func(ctx context.Context, a *app.App) error {
		for i := 0; feedAll || i < feedPages; i++ {
			n, err := a.Feed.Load(ctx)
			if err != nil {
				return fmt.Errorf("failed to load feed: %w", err)
			}
			if n == 0 || !a.Feed.HasMore() {
				break
			}
		}

		posts := a.Feed.Posts()
		if len(posts) == 0 {
			fmt.Println("No posts yet. Share one with: instafeed post create \"Hello\"")
			return nil
		}

		fmt.Printf("\n📷 Feed (%d posts)\n", len(posts))
		fmt.Println(strings.Repeat("─", 60))
		for _, p := range posts {
			printPost(p)
		}
		if a.Feed.HasMore() {
			fmt.Println("  … more with --pages or --all")
		}
		fmt.Println()
		return nil
	})
}

func printPost(p model.FeedPost) {
	heart := "♡"
	if p.Liked {
		heart = "♥"
	}

	// Truncate content if too long
	content := strings.ReplaceAll(p.Content, "\n", " ")
	if len(content) > 40 {
		content = content[:37] + "..."
	}

	when := ""
	if !p.CreatedAt.IsZero() {
		when = humanize.Time(p.CreatedAt)
	}

	fmt.Printf("  #%-5d %s %-3d  %-40s  %-20s  %s\n", p.PostID, heart, p.LikeCount, content, p.Author, when)
	if p.PostImg != "" {
		fmt.Printf("         🖼  %s\n", p.PostImg)
	}
}
