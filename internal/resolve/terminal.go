package resolve

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// TerminalKey identifies the terminal/shell invoking savecontext, used to
// correlate a session with "the terminal the user is typing into" across
// separate CLI invocations sharing one interactive shell (spec.md §4.6,
// §6's SAVECONTEXT_TERMINAL_KEY override).
//
// No pack example walks a process tree (the teacher's daemon package
// tracks daemons it spawned itself, not an arbitrary ancestor shell), so
// this reads /proc directly on Linux rather than adopting a third-party
// process-inspection library (see DESIGN.md). Every other platform falls
// back to the parent PID alone, which is weaker but always available.
func TerminalKey(override string) string {
	if override != "" {
		return override
	}
	if key := os.Getenv("SAVECONTEXT_TERMINAL_KEY"); key != "" {
		return key
	}

	if runtime.GOOS == "linux" {
		if tty, ok := controllingTTY(os.Getpid()); ok {
			return "tty:" + tty
		}
	}

	return fmt.Sprintf("ppid:%d", os.Getppid())
}

// controllingTTY reads the tty_nr field from /proc/<pid>/stat, which stays
// constant for every process attached to the same terminal session, so
// no walk up the process tree is done.
func controllingTTY(pid int) (string, bool) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return "", false
	}

	// The process name (field 2) is parenthesized and may itself contain
	// spaces or parentheses, so split on the last ')' before tokenizing
	// the remaining whitespace-separated fields.
	closeParen := strings.LastIndex(string(data), ")")
	if closeParen == -1 {
		return "", false
	}
	fields := strings.Fields(string(data)[closeParen+1:])
	// fields[0] = state, fields[1] = ppid, ..., fields[4] = tty_nr (field 7 overall)
	const ttyNrOffset = 4
	if len(fields) <= ttyNrOffset {
		return "", false
	}
	ttyNr, err := strconv.Atoi(fields[ttyNrOffset])
	if err != nil {
		return "", false
	}
	return strconv.Itoa(ttyNr), true
}
