// Package runkey derives the canonical acquisition-run identity from the
// heterogeneous per-window file names produced by the segmentation step.
package runkey

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	extensionPattern = regexp.MustCompile(`\.[A-Za-z][A-Za-z0-9]*$`)
	windowPattern    = regexp.MustCompile(`_window\d{4}$`)
	identityPattern  = regexp.MustCompile(`(sub-\d{3}).*?(ses-\d{2}).*?(run-\d{2})`)
)

const subjectMarker = "_sub-"

// Key is the (subject, session, run) identity of one recording run.
type Key struct {
	Subject string // e.g. "sub-001"
	Session string // e.g. "ses-01"
	Run     string // e.g. "run-01"
}

// String renders the canonical form "sub-001_ses-01_run-01".
func (k Key) String() string {
	return fmt.Sprintf("%s_%s_%s", k.Subject, k.Session, k.Run)
}

// Parse extracts the run identity from a window file name such as
//
//	sub-001_ses-01_ecg_sub-001_ses-01_task-szMonitoring_run-01_ecg_window0001.csv
//
// The extension and the _windowNNNN suffix are dropped, then the search starts
// at the rightmost "_sub-" so a subject/session prefix repeated in front of the
// raw file fragment never wins. ok is false when the name has no "_sub-" or
// when no subject, session and run tokens follow it in that order.
func Parse(sourceFile string) (Key, bool) {
	base := strings.TrimSpace(sourceFile)
	base = extensionPattern.ReplaceAllString(base, "")
	base = windowPattern.ReplaceAllString(base, "")

	idx := strings.LastIndex(base, subjectMarker)
	if idx < 0 {
		return Key{}, false
	}

	m := identityPattern.FindStringSubmatch(base[idx+1:])
	if m == nil {
		return Key{}, false
	}
	return Key{Subject: m[1], Session: m[2], Run: m[3]}, true
}

// ParseString is Parse returning the canonical string form.
func ParseString(sourceFile string) (string, bool) {
	key, ok := Parse(sourceFile)
	if !ok {
		return "", false
	}
	return key.String(), true
}

// BelongsTo reports whether a source file name is attributed to subject
// ("sub-001"). An empty subject matches every file.
func BelongsTo(sourceFile, subject string) bool {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return true
	}
	return strings.HasPrefix(sourceFile, subject+"_")
}
