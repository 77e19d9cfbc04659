package resolve

import "strings"

// Synonym maps normalize free-form CLI input onto the canonical enum
// values, colocated with those enums in the teacher's
// validateStatusWithCustom style (spec.md §4.6).
var statusSynonyms = map[string]string{
	"done":      "closed",
	"complete":  "closed",
	"completed": "closed",
	"finished":  "closed",
	"resolved":  "closed",
	"fixed":     "closed",
	"wontfix":   "closed",
	"wip":       "in_progress",
	"doing":     "in_progress",
	"working":   "in_progress",
	"active":    "in_progress",
	"started":   "in_progress",
	"new":       "open",
	"todo":      "open",
	"pending":   "open",
	"backlog":   "open",
	"waiting":   "blocked",
	"hold":      "deferred",
	"later":     "deferred",
	"postponed": "deferred",
}

var typeSynonyms = map[string]string{
	"story":       "feature",
	"enhancement": "feature",
	"improvement": "feature",
	"issue":       "bug",
	"defect":      "bug",
	"problem":     "bug",
	"fix":         "bug",
	"ticket":      "task",
	"item":        "task",
	"work":        "task",
	"todo":        "task",
	"cleanup":     "chore",
	"refactor":    "chore",
	"maintenance": "chore",
	"parent":      "epic",
	"initiative":  "epic",
}

// prioritySynonyms maps free-form words onto the 0-4 scale, where 0 is
// lowest and 4 is critical (spec.md §4.6; original_source's
// PRIORITY_SYNONYMS). P-notation and bare digits are handled separately
// in NormalizePriority since they're positional, not a word lookup.
var prioritySynonyms = map[string]string{
	"critical":  "4",
	"crit":      "4",
	"urgent":    "4",
	"highest":   "4",
	"high":      "3",
	"important": "3",
	"medium":    "2",
	"normal":    "2",
	"default":   "2",
	"low":       "1",
	"minor":     "1",
	"backlog":   "0",
	"lowest":    "0",
	"trivial":   "0",
}

// NormalizeStatus maps a free-form status word onto its canonical value,
// returning the input unchanged (lowercased) if no synonym applies.
func NormalizeStatus(input string) string {
	return normalize(input, statusSynonyms)
}

// NormalizeIssueType maps a free-form type word onto its canonical value.
func NormalizeIssueType(input string) string {
	return normalize(input, typeSynonyms)
}

// NormalizePriority maps a free-form priority word, a bare digit "0"-"4",
// or a "P0"-"P4" form onto its canonical 0-4 string value (spec.md §4.6).
func NormalizePriority(input string) string {
	key := strings.ToLower(strings.TrimSpace(input))
	if strings.HasPrefix(key, "p") && len(key) == 2 {
		return key[1:]
	}
	return normalize(input, prioritySynonyms)
}

func normalize(input string, table map[string]string) string {
	key := strings.ToLower(strings.TrimSpace(input))
	if canonical, ok := table[key]; ok {
		return canonical
	}
	return key
}
