// Package rounderr defines the closed set of business rejections the round
// state machine can produce. Callers branch on these with errors.As instead
// of inspecting strings; anything not in this set is an infrastructure error.
package rounderr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	CodeNoServiceForCheckpoint = "no_service_for_checkpoint"
	CodeSharedCheckpoint       = "shared_checkpoint"
	CodeEmptyServiceSequence   = "empty_service_sequence"
	CodeOutOfSequence          = "out_of_sequence"
	CodeWrongService           = "wrong_service"
)

// Rejection is implemented by every error in this package.
type Rejection interface {
	error
	Code() string
}

// NoServiceForCheckpoint: the scanned checkpoint is not associated with any
// client service. Operator must fix the catalog; never retried.
type NoServiceForCheckpoint struct {
	CheckpointID uint
}

func (e *NoServiceForCheckpoint) Error() string {
	return fmt.Sprintf("checkpoint %d is not assigned to any service", e.CheckpointID)
}

func (e *NoServiceForCheckpoint) Code() string { return CodeNoServiceForCheckpoint }

// SharedCheckpoint: the scanned checkpoint is associated with more than one
// client service, so automatic assignment is ambiguous. Never auto-resolved.
type SharedCheckpoint struct {
	CheckpointID uint
	ServiceNames []string
}

func (e *SharedCheckpoint) Error() string {
	return fmt.Sprintf("checkpoint %d is shared by services %s", e.CheckpointID, strings.Join(e.ServiceNames, ", "))
}

func (e *SharedCheckpoint) Code() string { return CodeSharedCheckpoint }

// EmptyServiceSequence: the guard's service owns no checkpoints.
type EmptyServiceSequence struct {
	ServiceID   uuid.UUID
	ServiceName string
}

func (e *EmptyServiceSequence) Error() string {
	return fmt.Sprintf("service %q has no checkpoints configured", e.ServiceName)
}

func (e *EmptyServiceSequence) Code() string { return CodeEmptyServiceSequence }

// OutOfSequence: the scanned checkpoint is not the next one in the guard's
// round. Deterministic; retrying the same scan rejects identically.
type OutOfSequence struct {
	ScannedCheckpointID  uint
	ExpectedCheckpointID uint
	ExpectedName         string
	CurrentIndex         int
}

func (e *OutOfSequence) Error() string {
	return fmt.Sprintf("out of sequence: scanned checkpoint %d, expected %d (%s)", e.ScannedCheckpointID, e.ExpectedCheckpointID, e.ExpectedName)
}

func (e *OutOfSequence) Code() string { return CodeOutOfSequence }

// WrongService: the scanned checkpoint belongs to a different service than
// the one bound at round start.
type WrongService struct {
	CheckpointID     uint
	BoundServiceName string
}

func (e *WrongService) Error() string {
	return fmt.Sprintf("checkpoint %d does not belong to the active service %q", e.CheckpointID, e.BoundServiceName)
}

func (e *WrongService) Code() string { return CodeWrongService }

// AsRejection extracts a business rejection from an error chain.
func AsRejection(err error) (Rejection, bool) {
	var rej Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// IsConfiguration reports whether the rejection requires operator action on
// the catalog.
func IsConfiguration(err error) bool {
	rej, ok := AsRejection(err)
	if !ok {
		return false
	}
	switch rej.Code() {
	case CodeNoServiceForCheckpoint, CodeSharedCheckpoint, CodeEmptyServiceSequence:
		return true
	}
	return false
}

// IsSequence reports whether the rejection is a deterministic ordering
// violation for the guard's current round.
func IsSequence(err error) bool {
	rej, ok := AsRejection(err)
	if !ok {
		return false
	}
	switch rej.Code() {
	case CodeOutOfSequence, CodeWrongService:
		return true
	}
	return false
}
