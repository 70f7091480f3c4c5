package kinject

import (
	"errors"
	"fmt"
	"go/token"
	"strings"
)

// ErrOutOfDate is returned in check mode when a generated file differs from its directive.
var ErrOutOfDate = errors.New("generated file is out of date")

// InvalidAnnotationError reports a malformed injection marker or a marked
// declaration that cannot act as a constructor.
type InvalidAnnotationError struct {
	Pos        token.Pos
	Position   token.Position
	Annotation string
	Reason     string
}

func (e *InvalidAnnotationError) Error() string {
	if e.Position.IsValid() {
		return fmt.Sprintf("%s: invalid annotation %s: %s", e.Position, e.Annotation, e.Reason)
	}
	return fmt.Sprintf("invalid annotation %s: %s", e.Annotation, e.Reason)
}

// MissingBindingError reports a type that nothing can construct.
type MissingBindingError struct {
	Key   string
	Trace []string
}

func (e *MissingBindingError) Error() string {
	return "cannot find an inject constructor or provider for: " + e.Key + formatTrace(e.Trace)
}

// DuplicateBindingError reports a type bound more than once.
type DuplicateBindingError struct {
	Key     string
	Sources []string
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("cannot provide: %s as it is already provided by %s", e.Key, strings.Join(e.Sources, ", "))
}

// CycleError reports a binding that depends on itself.
type CycleError struct {
	Trace []string
}

func (e *CycleError) Error() string {
	return "cycle detected" + formatTrace(e.Trace)
}

func formatTrace(trace []string) string {
	if len(trace) == 0 {
		return ""
	}

	var sb strings.Builder
	for _, frame := range trace {
		sb.WriteString("\n\t")
		sb.WriteString(frame)
	}
	return sb.String()
}
