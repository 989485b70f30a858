// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by Protocol is a *StepError whose
// Kind is one of these, so callers can use errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrValidation         = errors.New("validation failed")
	ErrChannelUnavailable = errors.New("settlement channel unavailable")
	ErrInternal           = errors.New("internal error")
)

// Step names the protocol step that failed.
type Step string

const (
	StepValidateInput   Step = "validate-input"
	StepLookupVoter     Step = "lookup-voter"
	StepLookupCandidate Step = "lookup-candidate"
	StepPrepareAccount  Step = "prepare-pool-account"
	StepIssueBallot     Step = "issue-ballot"
	StepOpenSession     Step = "open-session"
	StepSession         Step = "session"
	StepTransfer        Step = "transfer"
	StepEnqueue         Step = "enqueue-settlement"
	StepCommit          Step = "commit"
)

// StepError reports where a protocol run stopped, what kind of failure it
// was and the state the attempt was left in.
type StepError struct {
	Step  Step
	Kind  error
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Is matches the error kind, so errors.Is(err, ErrConflict) works without
// unwrapping to the underlying store or ledger error.
func (e *StepError) Is(target error) bool {
	return target == e.Kind
}

func stepError(step Step, kind error, state State, err error) *StepError {
	if err == nil {
		err = kind
	}
	return &StepError{Step: step, Kind: kind, State: state, Err: err}
}
