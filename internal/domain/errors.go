package domain

import (
	"errors"
	"fmt"
)

// Operation identifies which transfer operation failed.
type Operation string

const (
	OpUpload Operation = "upload"
	OpRemove Operation = "remove"
)

var (
	ErrUnknownBackend  = errors.New("unknown storage backend")
	ErrTriggerNotFound = errors.New("trigger not found")
	ErrArtifactMissing = errors.New("backup artifact not found in local directory")
)

// TransferError reports a failed upload or removal against one backend. An
// upload failure is fatal to the run; a removal failure is downgraded to a
// warning by the cycling engine.
type TransferError struct {
	Backend string
	Op      Operation
	Err     error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// LedgerError reports a failed ledger read or write. It is fatal to the
// retention step only: the upload has already succeeded and is not rolled
// back.
type LedgerError struct {
	Key string
	Err error
}

func (e *LedgerError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Key, e.Err)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}
