// Copyright (c) 2025 Broadcom. All Rights Reserved.
// Broadcom Confidential. The term "Broadcom" refers to Broadcom Inc.
// and/or its subsidiaries.

package rescue

import "fmt"

// Kind classifies a recovery failure by what it prevents.
type Kind string

const (
	// KindPrecondition aborts the whole session before any mutation.
	KindPrecondition Kind = "precondition"
	// KindBackup means the pristine map could not be copied aside; the
	// affected subsystem is left stopped and untouched.
	KindBackup Kind = "backup"
	// KindCodec means the raw map could not be parsed or filtered.
	KindCodec Kind = "codec"
	// KindInjection means the filtered map could not be installed.
	KindInjection Kind = "injection"
	// KindServiceControl means a stop/start command failed.
	KindServiceControl Kind = "service-control"
)

// Error is a recovery failure scoped to one subsystem phase. Only a
// precondition failure is fatal to the session.
type Error struct {
	Kind      Kind
	Phase     Phase
	Subsystem string
	Err       error
}

func (e *Error) Error() string {
	if e.Subsystem == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s failed (%s): %v", e.Subsystem, e.Phase, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, phase Phase, subsystem string, err error) *Error {
	return &Error{Kind: kind, Phase: phase, Subsystem: subsystem, Err: err}
}
