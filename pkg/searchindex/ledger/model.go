package ledger

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

type JobStatusType string

const (
	StatusStarted         JobStatusType = "STARTED"
	StatusRunning         JobStatusType = "RUNNING"
	StatusCompleted       JobStatusType = "COMPLETED"
	StatusFailed          JobStatusType = "FAILED"
	StatusActive          JobStatusType = "ACTIVE"
	StatusActiveWithError JobStatusType = "ACTIVEWITHERROR"
	StatusStopped         JobStatusType = "STOPPED"
)

type FailureDetails struct {
	Context          string `json:"context,omitempty"`
	LastFailedAt     int64  `json:"lastFailedAt,omitempty"`
	LastFailedReason string `json:"lastFailedReason,omitempty"`
}

// JobStatus is the typed view of the ledger record. Fields written by other
// jobs are kept in the stored document but not exposed here.
type JobStatus struct {
	Status         JobStatusType   `json:"status"`
	Timestamp      int64           `json:"timestamp"`
	FailureDetails *FailureDetails `json:"failureDetails,omitempty"`
}

// FailureContext keeps the layout other readers of the job record parse.
func FailureContext(operation, info string) string {
	return fmt.Sprintf("Failed While : %s \n Additional Info:  %s ", operation, info)
}

// FailureReason renders err together with the stack of the caller.
func FailureReason(err error) string {
	return fmt.Sprintf("Reason: [%s] , Trace : [%s]", err.Error(), goerrors.Wrap(err, 1).ErrorStack())
}
