package pipeerr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks inputs whose shape is wrong (missing required columns, bad stride).
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks missing inputs: no window files, no modality tables, no event log.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks unusable settings.
	ErrConfiguration = errors.New("configuration error")
	// ErrIO marks read/write failures at stage boundaries.
	ErrIO = errors.New("io error")
	// ErrBusy marks an overlapping invocation holding the pipeline lock.
	ErrBusy = errors.New("pipeline busy")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short label for the marker carried by err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrIO):
		return "io"
	default:
		return "unknown"
	}
}

// Hint suggests the next operator action for a classified failure.
func Hint(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "check the input table header against the configured schema"
	case errors.Is(err, ErrNotFound):
		return "check the configured paths and that the previous stage ran"
	case errors.Is(err, ErrConfiguration):
		return "run `biolabel config validate`"
	case errors.Is(err, ErrBusy):
		return "wait for the running invocation to finish"
	default:
		return "check file permissions and free space"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
