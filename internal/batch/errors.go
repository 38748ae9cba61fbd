package batch

import (
	"errors"
	"fmt"
)

type PreconditionReason string

const (
	ReasonNoFiles       PreconditionReason = "no_files"
	ReasonNameMismatch  PreconditionReason = "name_mismatch"
	ReasonMissingConfig PreconditionReason = "missing_config"
	ReasonBusy          PreconditionReason = "busy"
)

// PreconditionError means the batch never started and nothing was transferred.
type PreconditionError struct {
	Reason PreconditionReason
	Files  int
	Names  int
}

func (e *PreconditionError) Error() string {
	if e.Reason == ReasonNameMismatch {
		return fmt.Sprintf("precondition failed: %s (%d names for %d files)", e.Reason, e.Names, e.Files)
	}
	return fmt.Sprintf("precondition failed: %s", e.Reason)
}

// IncompleteTransferError halts the batch: the staged file is smaller than expected or missing.
type IncompleteTransferError struct {
	File     string
	Got      uint64
	Expected uint64
}

func (e *IncompleteTransferError) Error() string {
	return fmt.Sprintf("incomplete transfer of %q: got %d of %d bytes", e.File, e.Got, e.Expected)
}

// AttachmentError is returned when the upload failed both with and without the thumbnail.
type AttachmentError struct {
	WithThumbnail    error
	WithoutThumbnail error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("upload failed with thumbnail (%v) and without (%v)", e.WithThumbnail, e.WithoutThumbnail)
}

func (e *AttachmentError) Unwrap() []error {
	return []error{e.WithThumbnail, e.WithoutThumbnail}
}

// FatalError wraps anything unexpected. Users only see a generic message.
type FatalError struct {
	Step string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("batch failed at %s: %v", e.Step, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

var errCancelled = errors.New("batch: cancelled")
