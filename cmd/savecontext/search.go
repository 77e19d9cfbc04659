package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/savecontext/savecontext/internal/embeddings"
	"github.com/savecontext/savecontext/internal/scerror"
)

var searchCmd = &cobra.Command{
	Use:     "search <query>",
	GroupID: "context",
	Short:   "Semantic search over saved context items",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessID, _ := cmd.Flags().GetString("session")
		limit, _ := cmd.Flags().GetInt("limit")
		threshold, _ := cmd.Flags().GetFloat32("threshold")
		quality, _ := cmd.Flags().GetBool("quality")

		var results []embeddings.SearchResult
		var err error
		if quality {
			results, err = embeddings.SearchQuality(rootCtx, store, qualityProvider(), args[0], sessID, limit, threshold)
		} else {
			results, err = embeddings.SearchFast(rootCtx, store, fastEmbedder, args[0], sessID, limit, threshold)
		}
		if err != nil {
			return scerror.Wrap(scerror.CodeEmbeddingError, "searching", err)
		}

		emit(results, func() {
			for _, r := range results {
				fmt.Printf("%.3f  %s  %s\n", r.Score, r.ItemID, truncate(r.ChunkText, 100))
			}
		})
		return nil
	},
}

func init() {
	searchCmd.Flags().String("session", "", "restrict to a single session (default: all sessions)")
	searchCmd.Flags().Int("limit", 10, "maximum results")
	searchCmd.Flags().Float32("threshold", 0.0, "minimum cosine similarity")
	searchCmd.Flags().Bool("quality", false, "search the quality tier instead of the fast tier")
}
