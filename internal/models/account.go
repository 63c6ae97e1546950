package models

import (
	"math"
	"strings"
	"time"
)

// Role distinguishes learners from the guardians who oversee them
type Role string

const (
	RoleLearner  Role = "learner"
	RoleGuardian Role = "guardian"
)

// ParseRole accepts the current role names and the legacy child/parent aliases.
// An empty string means learner.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "learner", "child":
		return RoleLearner, true
	case "guardian", "parent":
		return RoleGuardian, true
	default:
		return "", false
	}
}

// DateLayout is the calendar-day format used for activity dates and history entries
const DateLayout = "2006-01-02"

// MaxCounter is the largest value a stored topic counter may reach.
// Five topics at the limit still sum without overflowing an int64.
const MaxCounter = 1 << 40

// TopicStats holds the per-topic counters of an account
type TopicStats struct {
	Score         int `json:"score"`
	Failures      int `json:"failures"`
	FrequencyTier int `json:"frequencyTier"`
}

// DailyHistoryEntry tallies the answers given on one calendar day
type DailyHistoryEntry struct {
	Date           string `json:"date"`
	CorrectCount   int    `json:"correctCount"`
	IncorrectCount int    `json:"incorrectCount"`
}

// Account represents a learner or guardian record
type Account struct {
	ID               string
	Username         string
	UsernameKey      string
	CredentialHash   string
	Age              int
	Role             Role
	GuardianID       string
	Topics           map[Topic]TopicStats
	LastActivityDate string
	Streak           int
	DailyHistory     []DailyHistoryEntry
	SpentPoints      int
	Inventory        []string
	CreatedAt        time.Time
}

// UsernameKey returns the lookup key for a username. Lookups ignore case, display keeps it.
func UsernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// IsGuardian reports whether the account has the guardian role
func (a *Account) IsGuardian() bool {
	return a.Role == RoleGuardian
}

// Stats returns the counters for a topic, with the frequency tier defaulted
func (a *Account) Stats(topic Topic) TopicStats {
	stats := a.Topics[topic]
	if stats.FrequencyTier < 1 {
		stats.FrequencyTier = DefaultFrequencyTier
	}
	return stats
}

// TotalScore sums the score of every topic, saturating at math.MaxInt
func (a *Account) TotalScore() int {
	total := 0
	for _, t := range AllTopics {
		score := a.Topics[t].Score
		if score > 0 && total > math.MaxInt-score {
			return math.MaxInt
		}
		total += score
	}
	return total
}

// Balance is the spendable amount: total score minus what has been spent
func (a *Account) Balance() int {
	return a.TotalScore() - a.SpentPoints
}

// TopicSummary is the view of one topic exposed to callers
type TopicSummary struct {
	Score         int  `json:"score"`
	Failures      int  `json:"failures"`
	FrequencyTier int  `json:"frequencyTier"`
	Tier          Tier `json:"tier"`
}

// AccountSummary is everything about an account except its credential
type AccountSummary struct {
	ID               string                 `json:"id"`
	Username         string                 `json:"username"`
	Age              int                    `json:"age"`
	Role             Role                   `json:"role"`
	GuardianID       string                 `json:"guardianId,omitempty"`
	Topics           map[Topic]TopicSummary `json:"topics"`
	LastActivityDate string                 `json:"lastActivityDate,omitempty"`
	Streak           int                    `json:"streak"`
	DailyHistory     []DailyHistoryEntry    `json:"dailyHistory"`
	SpentPoints      int                    `json:"spentPoints"`
	Inventory        []string               `json:"inventory"`
	TotalScore       int                    `json:"totalScore"`
	Balance          int                    `json:"balance"`
	CreatedAt        time.Time              `json:"createdAt"`
}

// Summary builds the credential-free view of the account
func (a *Account) Summary() AccountSummary {
	topics := make(map[Topic]TopicSummary, len(AllTopics))
	for _, t := range AllTopics {
		stats := a.Stats(t)
		topics[t] = TopicSummary{
			Score:         stats.Score,
			Failures:      stats.Failures,
			FrequencyTier: stats.FrequencyTier,
			Tier:          TierForFrequency(stats.FrequencyTier),
		}
	}

	history := make([]DailyHistoryEntry, len(a.DailyHistory))
	copy(history, a.DailyHistory)
	inventory := make([]string, len(a.Inventory))
	copy(inventory, a.Inventory)

	return AccountSummary{
		ID:               a.ID,
		Username:         a.Username,
		Age:              a.Age,
		Role:             a.Role,
		GuardianID:       a.GuardianID,
		Topics:           topics,
		LastActivityDate: a.LastActivityDate,
		Streak:           a.Streak,
		DailyHistory:     history,
		SpentPoints:      a.SpentPoints,
		Inventory:        inventory,
		TotalScore:       a.TotalScore(),
		Balance:          a.Balance(),
		CreatedAt:        a.CreatedAt,
	}
}
