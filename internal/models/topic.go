package models

import (
	"fmt"
	"strings"
)

// Topic is one of the fixed arithmetic domains a learner practices
type Topic string

const (
	TopicAddition       Topic = "addition"
	TopicSubtraction    Topic = "subtraction"
	TopicMultiplication Topic = "multiplication"
	TopicDivision       Topic = "division"
	TopicPercent        Topic = "percent"
)

// AllTopics lists every topic in display order
var AllTopics = []Topic{
	TopicAddition,
	TopicSubtraction,
	TopicMultiplication,
	TopicDivision,
	TopicPercent,
}

// ParseTopic resolves a topic identifier, ignoring case and surrounding whitespace
func ParseTopic(s string) (Topic, error) {
	candidate := Topic(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range AllTopics {
		if t == candidate {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown topic %q", s)
}

// Valid reports whether t is one of the known topics
func (t Topic) Valid() bool {
	for _, known := range AllTopics {
		if t == known {
			return true
		}
	}
	return false
}

// Tier is the difficulty level derived from a topic's frequency counter
type Tier string

const (
	TierBeginner     Tier = "beginner"
	TierIntermediate Tier = "intermediate"
	TierAdvanced     Tier = "advanced"
)

// DefaultFrequencyTier is the frequency counter of a topic that has never been set
const DefaultFrequencyTier = 1

// TierForFrequency maps a stored frequency counter to a tier.
// The mapping only moves up as the counter grows.
func TierForFrequency(frequencyTier int) Tier {
	switch {
	case frequencyTier <= 1:
		return TierBeginner
	case frequencyTier == 2:
		return TierIntermediate
	default:
		return TierAdvanced
	}
}

// PointsPerCorrect returns the points a correct answer at this tier is worth
func (t Tier) PointsPerCorrect() int {
	switch t {
	case TierIntermediate:
		return 3
	case TierAdvanced:
		return 5
	default:
		return 1
	}
}
