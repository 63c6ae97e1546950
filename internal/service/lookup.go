package service

import (
	"context"
	"strings"
	"time"

	"mathquest/internal/models"
	"mathquest/internal/repository"
)

// Clock returns the current time
type Clock func() time.Time

// calendar turns the clock into calendar days of one time zone
type calendar struct {
	loc *time.Location
	now Clock
}

func newCalendar(loc *time.Location) calendar {
	if loc == nil {
		loc = time.UTC
	}
	return calendar{loc: loc, now: time.Now}
}

func (c calendar) today() time.Time {
	return c.now().In(c.loc)
}

// lookupLearner resolves a username to a learner account.
// Guardians do not accumulate scores, so they never resolve here.
func lookupLearner(ctx context.Context, store repository.AccountStore, username string) (*models.Account, error) {
	if strings.TrimSpace(username) == "" {
		return nil, ErrMissingData
	}
	account, err := store.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, storeError("look up account", err)
	}
	if account == nil || account.IsGuardian() {
		return nil, ErrNoSuchAccount
	}
	return account, nil
}
