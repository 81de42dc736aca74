// ABOUTME: Read command for viewing article content
// ABOUTME: Renders the article body as Markdown in the terminal and marks it read

package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harper/skim/internal/storage"
)

var readCmd = &cobra.Command{
	Use:   "read <article-id>",
	Short: "Read an article",
	Long: `Display the full content of an article and mark it as read.

If the feed entry carried no body, the article page is fetched and its main
content extracted, then cached for next time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		noMark, _ := cmd.Flags().GetBool("no-mark")

		article, err := resolveArticle(args[0])
		if err != nil {
			return err
		}
		feed, err := svc.GetFeed(article.FeedID)
		if err != nil {
			return fmt.Errorf("failed to get feed: %w", err)
		}

		bold := color.New(color.Bold).SprintFunc()
		faint := color.New(color.Faint).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Println(strings.Repeat("─", 60))
		fmt.Printf("%s\n\n", bold(article.Title))
		fmt.Printf("%s %s\n", faint("Feed:"), feed.DisplayTitle())
		if article.Author != nil && *article.Author != "" {
			fmt.Printf("%s %s\n", faint("Author:"), *article.Author)
		}
		if article.PublishedAt != nil {
			fmt.Printf("%s %s\n", faint("Published:"), article.PublishedAt.Format("Mon, 02 Jan 2006 15:04 MST"))
		}
		if article.Link != nil {
			fmt.Printf("%s %s\n", faint("Link:"), cyan(*article.Link))
		}
		fmt.Println(strings.Repeat("─", 60))

		markdown, err := svc.GetArticleContent(cmd.Context(), article.ID)
		if err != nil {
			fmt.Printf("\n(No content available: %v)\n", err)
		} else {
			rendered, renderErr := glamour.Render(markdown, "dark")
			if renderErr != nil {
				// Fall back to plain markdown if rendering fails
				fmt.Printf("%s\n", faint("(markdown rendering unavailable, showing plain text)"))
				fmt.Printf("\n%s\n", markdown)
			} else {
				fmt.Print(rendered)
			}
		}
		fmt.Println()

		if !noMark && !article.Read {
			read := true
			if err := svc.UpdateArticle(article.ID, storage.ArticleFlags{Read: &read}); err != nil {
				return fmt.Errorf("failed to mark article as read: %w", err)
			}
			fmt.Printf("%s\n", faint("Marked as read"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readCmd)

	readCmd.Flags().Bool("no-mark", false, "don't mark the article as read")
}
