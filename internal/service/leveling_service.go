package service

import (
	"context"
	"fmt"

	"mathquest/internal/models"
	"mathquest/internal/repository"
)

// CurrentTier maps a topic's frequency counter to a difficulty tier
func CurrentTier(frequencyTier int) models.Tier {
	return models.TierForFrequency(frequencyTier)
}

// PointsForTier is the value a client should attach to a correct answer at tier
func PointsForTier(tier models.Tier) int {
	return tier.PointsPerCorrect()
}

// TopicLevel describes the difficulty of one topic for a learner
type TopicLevel struct {
	Topic            models.Topic `json:"topic"`
	FrequencyTier    int          `json:"frequencyTier"`
	Tier             models.Tier  `json:"tier"`
	PointsPerCorrect int          `json:"pointsPerCorrect"`
}

// LevelingService reads and writes the per-topic frequency counters
type LevelingService struct {
	store repository.AccountStore
}

// NewLevelingService creates a new leveling service
func NewLevelingService(store repository.AccountStore) *LevelingService {
	return &LevelingService{store: store}
}

// GetFrequencyTier returns the stored frequency counter of a topic, 1 when never set
func (s *LevelingService) GetFrequencyTier(ctx context.Context, username, topic string) (int, error) {
	t, err := models.ParseTopic(topic)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}
	account, err := lookupLearner(ctx, s.store, username)
	if err != nil {
		return 0, err
	}
	return account.Stats(t).FrequencyTier, nil
}

// SetFrequencyTier stores a new frequency counter for a topic
func (s *LevelingService) SetFrequencyTier(ctx context.Context, username, topic string, tier int) error {
	t, err := models.ParseTopic(topic)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTopic, err)
	}
	if tier < 1 {
		return fmt.Errorf("%w: tier must be at least 1", ErrMissingData)
	}
	account, err := lookupLearner(ctx, s.store, username)
	if err != nil {
		return err
	}
	if err := s.store.SetFrequencyTier(ctx, account.ID, t, tier); err != nil {
		return storeError("set frequency tier", err)
	}
	return nil
}

// Levels returns the difficulty of every topic for a learner
func (s *LevelingService) Levels(ctx context.Context, username string) ([]TopicLevel, error) {
	account, err := lookupLearner(ctx, s.store, username)
	if err != nil {
		return nil, err
	}

	levels := make([]TopicLevel, 0, len(models.AllTopics))
	for _, t := range models.AllTopics {
		frequency := account.Stats(t).FrequencyTier
		tier := CurrentTier(frequency)
		levels = append(levels, TopicLevel{
			Topic:            t,
			FrequencyTier:    frequency,
			Tier:             tier,
			PointsPerCorrect: PointsForTier(tier),
		})
	}
	return levels, nil
}
