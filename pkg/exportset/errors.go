package exportset

import (
	"strconv"
	"strings"
)

// ValidationError captures a single field-level problem in a project file.
// Index is the 1-based position of the library, or 0 for top-level fields.
type ValidationError struct {
	Index   int
	Library string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	parts := []string{formatLocation(e.Index, e.Library)}
	if e.Field != "" {
		parts = append(parts, e.Field)
	}
	parts = append(parts, e.Message)
	return strings.TrimSpace(strings.Join(parts, " "))
}

// ValidationErrors aggregates multiple validation issues.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	if len(errs) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(errs))
	for i, err := range errs {
		messages[i] = err.Error()
	}
	return strings.Join(messages, "; ")
}

// Issues returns a copy of the underlying validation errors.
func (errs ValidationErrors) Issues() []ValidationError {
	return append([]ValidationError(nil), errs...)
}

func formatLocation(index int, name string) string {
	if index <= 0 {
		return "project"
	}
	loc := "library " + strconv.Itoa(index)
	if name = strings.TrimSpace(name); name != "" {
		loc += " (" + name + ")"
	}
	return loc
}
