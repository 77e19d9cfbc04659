// Command savecontext is a local, single-node knowledge store for AI
// coding agents: sessions, context items, issues, checkpoints, plans,
// and per-project memory, with a transactional mutation pipeline, an
// LDJSON sync engine, and a two-tier embedding/search engine.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/savecontext/savecontext/internal/scerror"
)

func main() {
	if err := Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a returned error onto the process exit code, using the
// engine's closed error taxonomy when available and falling back to a
// generic internal-error band otherwise. Per spec.md §7, callers in
// --json mode still get the structured error object on failure, not just
// textual message+hint lines.
func exitCodeFor(err error) int {
	var scErr *scerror.Error
	if e, ok := err.(*scerror.Error); ok {
		scErr = e
	} else {
		scErr = scerror.Wrap(scerror.CodeInternal, err.Error(), err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		_ = enc.Encode(scErr)
		return scErr.ExitBand
	}

	fmt.Fprintf(os.Stderr, "error: %s\n", scErr.Message)
	if scErr.Hint != "" {
		fmt.Fprintf(os.Stderr, "hint: %s\n", scErr.Hint)
	}
	return scErr.ExitBand
}
