package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"mathquest/internal/models"
	"mathquest/internal/repository"
)

// streakAttempts bounds the compare-and-set retries of a streak update
const streakAttempts = 3

// AnswerOutcome is one graded answer submitted by a practice client
type AnswerOutcome struct {
	Username  string
	Topic     string
	IsCorrect *bool
	Points    int
}

// OutcomeResult reports the counters after an outcome was recorded
type OutcomeResult struct {
	Topic            models.Topic `json:"topic"`
	IsCorrect        bool         `json:"isCorrect"`
	PointsAwarded    int          `json:"pointsAwarded"`
	Score            int          `json:"score"`
	Failures         int          `json:"failures"`
	Streak           int          `json:"streak"`
	LastActivityDate string       `json:"lastActivityDate"`
}

// ScoringService records answer outcomes against topic counters
type ScoringService struct {
	store     repository.AccountStore
	cal       calendar
	maxPoints int
}

// NewScoringService creates a new scoring service that counts days in loc.
// One answer may award at most the advanced-tier points until SetMaxPoints says otherwise.
func NewScoringService(store repository.AccountStore, loc *time.Location) *ScoringService {
	return &ScoringService{
		store:     store,
		cal:       newCalendar(loc),
		maxPoints: PointsForTier(models.TierAdvanced),
	}
}

// SetMaxPoints changes the most points a single correct answer may award
func (s *ScoringService) SetMaxPoints(n int) {
	if n > 0 {
		s.maxPoints = n
	}
}

// SetClock replaces the time source
func (s *ScoringService) SetClock(now Clock) {
	s.cal.now = now
}

// RecordAnswerOutcome increments exactly one of the topic's score or failure counters.
// Streak and history are updated afterwards on a best-effort basis.
func (s *ScoringService) RecordAnswerOutcome(ctx context.Context, outcome AnswerOutcome) (*OutcomeResult, error) {
	topic, err := models.ParseTopic(outcome.Topic)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}
	if outcome.IsCorrect == nil {
		return nil, ErrMissingOutcome
	}
	if outcome.Points > s.maxPoints {
		return nil, fmt.Errorf("%w: points %d exceed the maximum of %d", ErrMissingData, outcome.Points, s.maxPoints)
	}

	account, err := lookupLearner(ctx, s.store, outcome.Username)
	if err != nil {
		return nil, err
	}

	points := outcome.Points
	if points <= 0 {
		points = 1
	}

	stats := account.Stats(topic)
	result := &OutcomeResult{
		Topic:            topic,
		IsCorrect:        *outcome.IsCorrect,
		Score:            stats.Score,
		Failures:         stats.Failures,
		Streak:           account.Streak,
		LastActivityDate: account.LastActivityDate,
	}
	today := s.cal.today()

	if *outcome.IsCorrect {
		score, err := s.store.IncrementTopicScore(ctx, account.ID, topic, points)
		if err != nil {
			return nil, storeError("increment score", err)
		}
		result.Score = score
		result.PointsAwarded = points

		streak, last, err := s.advanceStreak(ctx, account, today)
		if err != nil {
			log.Printf("Streak update failed for account %s (%s): %v", account.ID, topic, err)
		} else {
			result.Streak, result.LastActivityDate = streak, last
		}
	} else {
		failures, err := s.store.IncrementTopicFailures(ctx, account.ID, topic)
		if err != nil {
			return nil, storeError("increment failures", err)
		}
		result.Failures = failures
	}

	if err := s.store.RecordDailyOutcome(ctx, account.ID, today.Format(models.DateLayout), *outcome.IsCorrect); err != nil {
		log.Printf("History update failed for account %s (%s): %v", account.ID, topic, err)
	}

	return result, nil
}

// advanceStreak applies a correct answer on today to the streak with compare-and-set,
// reloading the account when another writer got there first
func (s *ScoringService) advanceStreak(ctx context.Context, account *models.Account, today time.Time) (int, string, error) {
	last, streak := account.LastActivityDate, account.Streak

	for attempt := 0; attempt < streakAttempts; attempt++ {
		next, changed := NextStreak(last, streak, today)
		if !changed {
			return streak, last, nil
		}

		todayKey := today.Format(models.DateLayout)
		ok, err := s.store.CompareAndSetStreak(ctx, account.ID, last, todayKey, next)
		if err != nil {
			return 0, "", err
		}
		if ok {
			return next, todayKey, nil
		}

		fresh, err := s.store.GetAccountByID(ctx, account.ID)
		if err != nil {
			return 0, "", err
		}
		if fresh == nil {
			return 0, "", ErrNoSuchAccount
		}
		last, streak = fresh.LastActivityDate, fresh.Streak
	}
	return 0, "", fmt.Errorf("streak changed concurrently %d times", streakAttempts)
}

// NextStreak computes the streak after a correct answer on today.
// It returns changed=false when nothing needs to be written: a second answer on the same day,
// or a last activity date that lies after today.
func NextStreak(lastActivityDate string, streak int, today time.Time) (int, bool) {
	todayKey := today.Format(models.DateLayout)
	if lastActivityDate == todayKey {
		return streak, false
	}
	if lastActivityDate > todayKey {
		return streak, false
	}
	if lastActivityDate == today.AddDate(0, 0, -1).Format(models.DateLayout) {
		return streak + 1, true
	}
	return 1, true
}
