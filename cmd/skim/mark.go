// ABOUTME: Mark commands for toggling article read and starred flags
// ABOUTME: Flags are user state; ingestion never touches them

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harper/skim/internal/storage"
)

var markCmd = &cobra.Command{
	Use:   "mark",
	Short: "Change article read/starred flags",
}

func markFlagCmd(use, short string, apply func() storage.ArticleFlags, verb string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <article-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			article, err := resolveArticle(args[0])
			if err != nil {
				return err
			}
			if err := svc.UpdateArticle(article.ID, apply()); err != nil {
				return fmt.Errorf("failed to update article: %w", err)
			}
			fmt.Printf("%s: %s\n", verb, article.Title)
			return nil
		},
	}
}

func boolFlags(read, starred *bool) func() storage.ArticleFlags {
	return func() storage.ArticleFlags {
		return storage.ArticleFlags{Read: read, Starred: starred}
	}
}

func init() {
	t, f := true, false
	rootCmd.AddCommand(markCmd)
	markCmd.AddCommand(markFlagCmd("read", "Mark an article as read", boolFlags(&t, nil), "Marked as read"))
	markCmd.AddCommand(markFlagCmd("unread", "Mark an article as unread", boolFlags(&f, nil), "Marked as unread"))
	markCmd.AddCommand(markFlagCmd("star", "Star an article", boolFlags(nil, &t), "Starred"))
	markCmd.AddCommand(markFlagCmd("unstar", "Remove the star from an article", boolFlags(nil, &f), "Unstarred"))
}
