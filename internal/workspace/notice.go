package workspace

import (
	"errors"
	"fmt"

	"docsync/pkg/apperror"
)

// Notice is a transient, user-visible report of a failed action.
type Notice struct {
	Action string
	Err    error
}

func (n Notice) Message() string {
	var vErr *apperror.ValidationError
	if errors.As(n.Err, &vErr) {
		return fmt.Sprintf("Cannot %s: %s.", n.Action, vErr.Message)
	}
	if apperror.Retryable(n.Err) {
		return fmt.Sprintf("Failed to %s. Please try again.", n.Action)
	}
	return fmt.Sprintf("Failed to %s: %v.", n.Action, n.Err)
}

type Reporter interface {
	Report(Notice)
}

type ReporterFunc func(Notice)

func (f ReporterFunc) Report(n Notice) { f(n) }

type discardReporter struct{}

func (discardReporter) Report(Notice) {}
