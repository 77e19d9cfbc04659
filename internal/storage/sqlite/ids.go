package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/savecontext/savecontext/internal/idgen"
)

// allocateShortID reserves the next short id for the given project and
// entity kind ("issue" or "plan"), bumping the project's counter in the
// same transaction so two concurrent creates never receive the same
// value (spec.md §4.3: "the caller supplies the short id").
func allocateShortID(ctx context.Context, tx *sql.Tx, projectPath, kind string) (string, error) {
	var prefixCol, counterCol string
	switch kind {
	case "issue":
		prefixCol, counterCol = "issue_prefix", "next_issue_number"
	case "plan":
		prefixCol, counterCol = "plan_prefix", "next_plan_number"
	default:
		return "", fmt.Errorf("allocateShortID: unknown kind %q", kind)
	}

	var prefix string
	var counter int
	query := fmt.Sprintf(`SELECT %s, %s FROM projects WHERE path = ?`, prefixCol, counterCol) // #nosec G201 - kind is a fixed internal switch, not user input
	if err := tx.QueryRowContext(ctx, query, projectPath).Scan(&prefix, &counter); err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("project %s not found: %w", projectPath, errNotFound)
		}
		return "", fmt.Errorf("reading project counters: %w", err)
	}

	update := fmt.Sprintf(`UPDATE projects SET %s = ?, updated_at = ? WHERE path = ?`, counterCol) // #nosec G201 - see above
	if _, err := tx.ExecContext(ctx, update, counter+1, nowMillis(), projectPath); err != nil {
		return "", fmt.Errorf("advancing short id counter: %w", err)
	}

	return idgen.ShortID(prefix, counter), nil
}

// dualLookupWhere is the WHERE clause fragment used everywhere an entity
// can be addressed by either its opaque id or its short id (spec.md §4.6,
// "WHERE id = ?1 OR short_id = ?1").
const dualLookupWhere = `id = ?1 OR short_id = ?1`
