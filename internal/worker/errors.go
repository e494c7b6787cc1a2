package worker

import (
	"errors"

	"go.temporal.io/sdk/temporal"

	podwatcherrs "github.com/jdholdren/podwatch/internal/errors"
)

// Unwraps the application error from temporal into a structured error if possible.
//
// Returns true if the error carried one in its details.
// Returns false otherwise.
func asPodwatchErr(err error, target **podwatcherrs.Error) bool {
	if err == nil {
		return false
	}

	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || !appErr.HasDetails() {
		return false
	}
	return appErr.Details(target) == nil
}
