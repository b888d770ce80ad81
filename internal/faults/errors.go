package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidInput     = errors.New("invalid input")
	ErrDecode           = errors.New("decode error")
	ErrEncode           = errors.New("encode error")
	ErrFilesystem       = errors.New("filesystem error")
	ErrConcurrency      = errors.New("concurrency error")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrFilesystem
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Invalid is shorthand for configuration and argument validation failures.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

var kinds = []struct {
	name   string
	marker error
}{
	{"invalid_parameter", ErrInvalidParameter},
	{"invalid_input", ErrInvalidInput},
	{"decode", ErrDecode},
	{"encode", ErrEncode},
	{"filesystem", ErrFilesystem},
	{"concurrency", ErrConcurrency},
}

// Kind returns the stable name of the marker carried by err, or "unknown".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.marker) {
			return k.name
		}
	}
	return "unknown"
}

// FromKind rebuilds a classified error from a kind name and message, typically
// after the error crossed a process boundary as text.
func FromKind(kind, message string) error {
	message = strings.TrimSpace(message)
	for _, k := range kinds {
		if k.name == kind {
			prefix := k.marker.Error() + ": "
			return fmt.Errorf("%w: %s", k.marker, strings.TrimPrefix(message, prefix))
		}
	}
	if message == "" {
		message = "unknown failure"
	}
	return errors.New(message)
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
		return "job failure"
	}
	return strings.Join(parts, ": ")
}
