package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/savecontext/savecontext/internal/config"
	"github.com/savecontext/savecontext/internal/embeddings"
	"github.com/savecontext/savecontext/internal/scerror"
)

// qualityProvider builds the configured quality-tier embedding backend.
// embeddings.quality.provider selects between Ollama's native API and a
// generic HuggingFace-text-embeddings-inference-compatible endpoint.
func qualityProvider() embeddings.QualityProvider {
	url := config.GetString("embeddings.quality.url")
	model := config.GetString("embeddings.quality.model")

	if config.GetString("embeddings.quality.provider") == "httpjson" {
		token := config.GetString("embeddings.quality.token")
		dims := config.GetInt("embeddings.quality.dimensions")
		return embeddings.NewHTTPJSONProvider(url, model, token, dims)
	}
	return embeddings.NewOllamaProvider(url, model)
}

// hiddenProcessEmbeddingsCmd is not registered under any group and is
// deliberately undocumented in --help output: it is invoked only by
// embeddings.SpawnBackgroundUpgrade's detached child process (spec.md
// §4.5's "Background quality upgrade").
var hiddenProcessEmbeddingsCmd = &cobra.Command{
	Use:    "internal",
	Hidden: true,
}

func init() {
	processCmd := &cobra.Command{
		Use:    "process-embeddings",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			batchSize := config.GetInt("embeddings.quality.batch-size")
			if batchSize <= 0 {
				batchSize = 50
			}
			result, err := embeddings.ProcessPending(rootCtx, store, qualityProvider(), batchSize)
			if err != nil {
				return scerror.Wrap(scerror.CodeEmbeddingError, "processing pending embeddings", err)
			}
			fmt.Printf("embedded=%d failed=%d resynced=%d\n", result.Embedded, result.Failed, result.Resynced)
			return nil
		},
	}
	hiddenProcessEmbeddingsCmd.AddCommand(processCmd)
}
