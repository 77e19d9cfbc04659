package sqlite

import (
	"crypto/sha256"
	"fmt"

	"github.com/savecontext/savecontext/internal/types"
)

// contentHashIssue hashes the fields that matter for import collision
// detection, deliberately excluding id, timestamps, and assigned_at
// (spec.md §4.4; grounded on the teacher's hashIssueContent, minus
// external_ref which this domain doesn't carry).
func contentHashIssue(issue *types.Issue) string {
	h := sha256.New()
	fmt.Fprintf(h, "title:%s\n", issue.Title)
	fmt.Fprintf(h, "description:%s\n", issue.Description)
	fmt.Fprintf(h, "details:%s\n", issue.Details)
	fmt.Fprintf(h, "status:%s\n", issue.Status)
	fmt.Fprintf(h, "priority:%d\n", issue.Priority)
	fmt.Fprintf(h, "type:%s\n", issue.IssueType)
	fmt.Fprintf(h, "assignee:%s\n", issue.Assignee)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// contentHashPlan hashes the fields of a plan relevant to import collision
// detection.
func contentHashPlan(p *types.Plan) string {
	h := sha256.New()
	fmt.Fprintf(h, "title:%s\n", p.Title)
	fmt.Fprintf(h, "body:%s\n", p.Body)
	fmt.Fprintf(h, "success_criteria:%s\n", p.SuccessCriteria)
	fmt.Fprintf(h, "status:%s\n", p.Status)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// IssueConflictFields returns the names of the fields that differ between
// the database's current copy of an issue and an incoming one. The
// importer in internal/sync does not call it; it compares whole-record
// content hashes instead (spec.md §4.4).
func IssueConflictFields(existing, incoming *types.Issue) []string {
	var conflicts []string
	if existing.Title != incoming.Title {
		conflicts = append(conflicts, "title")
	}
	if existing.Description != incoming.Description {
		conflicts = append(conflicts, "description")
	}
	if existing.Status != incoming.Status {
		conflicts = append(conflicts, "status")
	}
	if existing.Priority != incoming.Priority {
		conflicts = append(conflicts, "priority")
	}
	if existing.IssueType != incoming.IssueType {
		conflicts = append(conflicts, "issue_type")
	}
	if existing.Assignee != incoming.Assignee {
		conflicts = append(conflicts, "assignee")
	}
	return conflicts
}
