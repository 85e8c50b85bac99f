package booking

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("slot conflict")
	ErrAlreadySettled = errors.New("appointment already settled")
	ErrStoreFailure   = errors.New("store failure")

	// ErrPaymentRejected marks a PaymentVerifier verdict against the payment. Other verifier
	// errors mean the provider could not be asked and are retryable.
	ErrPaymentRejected = errors.New("payment rejected")
)

var sentinels = []struct {
	err  error
	code string
}{
	{ErrInvalidInput, "invalid_input"},
	{ErrNotFound, "not_found"},
	{ErrConflict, "slot_conflict"},
	{ErrAlreadySettled, "already_settled"},
	{ErrStoreFailure, "store_failure"},
}

// Code is the stable machine-readable token for err, "ok" for nil.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return "store_failure"
}

// storeErr passes domain sentinels through and marks everything else as a retryable store failure.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return err
		}
	}
	return fmt.Errorf("%w: %s: %w", ErrStoreFailure, op, err)
}
