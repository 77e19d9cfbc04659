// Package sync implements the LDJSON export/import engine: snapshot-mode
// per-project export, cumulative deletion tracking, and import with
// content-hash change detection and three merge strategies (spec.md §4.4).
package sync

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Kinds enumerates the entity kinds synchronized to LDJSON, in the fixed
// order import must process them (spec.md §4.4 step 1).
var Kinds = []string{"session", "issue", "context_item", "memory", "checkpoint", "plan"}

// fileForKind maps an entity kind to its LDJSON filename within a
// project's sync directory.
var fileForKind = map[string]string{
	"session":      "sessions.jsonl",
	"issue":        "issues.jsonl",
	"context_item": "context_items.jsonl",
	"memory":       "memories.jsonl",
	"checkpoint":   "checkpoints.jsonl",
	"plan":         "plans.jsonl",
}

const deletionsFile = "deletions.jsonl"

// MergeStrategy selects how an import resolves a content-hash mismatch
// between a local record and its incoming counterpart (spec.md §4.4).
type MergeStrategy string

const (
	PreferNewer    MergeStrategy = "prefer-newer"
	PreferLocal    MergeStrategy = "prefer-local"
	PreferExternal MergeStrategy = "prefer-external"
)

// contentHash returns the SHA-256 hex digest of entity's canonical JSON
// serialization, used both to stamp outgoing records and to detect
// whether an incoming record differs from the local one.
func contentHash(entity interface{}) (string, error) {
	b, err := json.Marshal(entity)
	if err != nil {
		return "", fmt.Errorf("serializing record: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// wrapRecord flattens entity's fields with the type discriminator,
// content hash, and export timestamp into one JSON object, per the
// wire format in spec.md §6: `{"type": ..., <entity fields>, "content_hash":
// ..., "exported_at": ...}`.
func wrapRecord(kind string, entity interface{}, exportedAt time.Time) ([]byte, string, error) {
	hash, err := contentHash(entity)
	if err != nil {
		return nil, "", err
	}

	raw, err := json.Marshal(entity)
	if err != nil {
		return nil, "", fmt.Errorf("serializing record: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, "", err
	}

	typeJSON, _ := json.Marshal(kind)
	hashJSON, _ := json.Marshal(hash)
	tsJSON, _ := json.Marshal(exportedAt.UTC().Format(time.RFC3339))
	fields["type"] = typeJSON
	fields["content_hash"] = hashJSON
	fields["exported_at"] = tsJSON

	line, err := json.Marshal(fields)
	if err != nil {
		return nil, "", err
	}
	return line, hash, nil
}

// envelope is the minimum shape needed to read a record's discriminator
// and ids back out without knowing its full entity type yet.
type envelope struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	ContentHash string `json:"content_hash"`
	UpdatedAt   int64  `json:"updated_at"`
	CreatedAt   int64  `json:"created_at"`
}

// deletionRecord is the wire shape of one line in deletions.jsonl
// (spec.md §6).
type deletionRecord struct {
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	ProjectPath string `json:"project_path"`
	DeletedAt   string `json:"deleted_at"`
	DeletedBy   string `json:"deleted_by"`
}
