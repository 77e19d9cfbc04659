// Package idgen generates the two identifier shapes savecontext entities
// carry: a globally unique opaque id (typed prefix + 12 hex chars) and a
// project-scoped short id (per-project prefix + hex counter) for issues
// and plans.
package idgen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns a globally unique opaque id such as "sess_3f2a9c1d4e5b"
// (spec.md §3, Glossary "Identifiers"): a typed prefix, an underscore,
// and the first 12 hex characters of a random UUIDv4.
func New(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "_" + hex[:12]
}

// ShortID formats a per-project counter as the project's short id, e.g.
// ShortID("SC", 418) == "SC-1a2". The counter grows past 4 hex digits
// rather than wrapping; spec.md's "4 hex chars" is the common case, not a
// hard width.
func ShortID(prefix string, counter int) string {
	return fmt.Sprintf("%s-%x", prefix, counter)
}
