// ABOUTME: List command for viewing articles with filtering options
// ABOUTME: Displays articles with read status, star, title, and published date

package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/skim/internal/storage"
	"github.com/harper/skim/internal/timeutil"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls", "l"},
	Short:   "List articles",
	Long:    "List articles with optional filtering by feed, read status, and starred",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		feedRef, _ := cmd.Flags().GetString("feed")
		starred, _ := cmd.Flags().GetBool("starred")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := &storage.ArticleFilter{
			UnreadOnly:  !all,
			StarredOnly: starred,
			Limit:       &limit,
			Offset:      &offset,
		}

		if feedRef != "" {
			feed, err := resolveFeed(feedRef)
			if err != nil {
				return err
			}
			filter.FeedID = &feed.ID
		}

		articles, err := svc.ListArticles(filter)
		if err != nil {
			return fmt.Errorf("failed to list articles: %w", err)
		}
		if len(articles) == 0 {
			fmt.Println("No articles found")
			return nil
		}

		faint := color.New(color.Faint).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		for _, article := range articles {
			idShort := article.ID
			if len(idShort) > 8 {
				idShort = idShort[:8]
			}
			fmt.Print(faint(idShort))
			fmt.Print(" ")

			if article.Read {
				fmt.Print("✓ ")
			} else {
				fmt.Print("  ")
			}
			if article.Starred {
				fmt.Print(yellow("* "))
			} else {
				fmt.Print("  ")
			}

			fmt.Print(article.Title)
			if article.PublishedAt != nil {
				fmt.Printf(" %s", faint(timeutil.Relative(*article.PublishedAt)))
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().BoolP("all", "a", false, "show all articles including read")
	listCmd.Flags().StringP("feed", "f", "", "filter by feed URL or ID prefix")
	listCmd.Flags().BoolP("starred", "s", false, "show only starred articles")
	listCmd.Flags().IntP("limit", "n", 20, "max articles to show")
	listCmd.Flags().IntP("offset", "o", 0, "number of articles to skip (for pagination)")
}
