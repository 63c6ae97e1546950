package service

import (
	"errors"
	"fmt"

	"mathquest/internal/repository"
)

var (
	ErrNoSuchAccount     = errors.New("no such account")
	ErrUsernameTaken     = errors.New("username already taken")
	ErrInvalidAge        = errors.New("age out of range")
	ErrInvalidTopic      = errors.New("invalid topic")
	ErrMissingOutcome    = errors.New("answer outcome is required")
	ErrMissingData       = errors.New("missing or invalid data")
	ErrInsufficientFunds = errors.New("not enough points")
	ErrForbidden         = errors.New("forbidden")
	ErrBadSecret         = errors.New("wrong password")
	ErrStoreUnavailable  = errors.New("account store unavailable")
)

// storeError marks a failed store round trip as ErrStoreUnavailable while keeping the cause.
// A counter at its ceiling is a rejected input, not an outage.
func storeError(op string, err error) error {
	if errors.Is(err, repository.ErrCounterLimit) {
		return fmt.Errorf("%s: %w: %w", op, ErrMissingData, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
