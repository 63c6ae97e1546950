package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"mathquest/internal/models"
	"mathquest/internal/repository"
)

// BackupVersion is written into every export and checked on import
const BackupVersion = "1"

// BackupData represents a complete account backup
type BackupData struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Accounts   []AccountBackup `json:"accounts"`
}

// AccountBackup represents an account record for backup.
// Credentials are exported as hashes only.
type AccountBackup struct {
	ID               string                       `json:"id"`
	Username         string                       `json:"username"`
	CredentialHash   string                       `json:"credential_hash"`
	Age              int                          `json:"age"`
	Role             string                       `json:"role"`
	GuardianID       string                       `json:"guardian_id,omitempty"`
	Topics           map[string]models.TopicStats `json:"topics"`
	LastActivityDate string                       `json:"last_activity_date,omitempty"`
	Streak           int                          `json:"streak"`
	DailyHistory     []models.DailyHistoryEntry   `json:"daily_history"`
	SpentPoints      int                          `json:"spent_points"`
	Inventory        []string                     `json:"inventory"`
	CreatedAt        time.Time                    `json:"created_at"`
}

// ImportStats counts what an import did
type ImportStats struct {
	Imported int
	Skipped  int
}

// BackupService handles account backup and restore
type BackupService struct {
	store repository.AccountStore
}

// NewBackupService creates a new backup service
func NewBackupService(store repository.AccountStore) *BackupService {
	return &BackupService{store: store}
}

// Export writes every account to w as JSON
func (s *BackupService) Export(ctx context.Context, w io.Writer) (int, error) {
	accounts, err := s.store.ListAllAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to export accounts: %w", err)
	}

	backup := &BackupData{
		Version:    BackupVersion,
		ExportedAt: time.Now().UTC(),
		Accounts:   make([]AccountBackup, 0, len(accounts)),
	}
	for i := range accounts {
		backup.Accounts = append(backup.Accounts, toBackup(&accounts[i]))
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return 0, fmt.Errorf("failed to encode backup: %w", err)
	}
	return len(backup.Accounts), nil
}

// ExportToFile creates a backup file at outputPath
func (s *BackupService) ExportToFile(ctx context.Context, outputPath string) error {
	log.Println("Starting account export...")

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	count, err := s.Export(ctx, file)
	if err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	log.Printf("Exported %d accounts to %s", count, outputPath)
	return nil
}

// ImportFromFile restores accounts from a backup file
func (s *BackupService) ImportFromFile(ctx context.Context, inputPath string) (*ImportStats, error) {
	log.Printf("Starting account import from %s...", inputPath)

	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.Import(ctx, file)
}

// Import restores accounts from r. Usernames that already exist are skipped.
func (s *BackupService) Import(ctx context.Context, r io.Reader) (*ImportStats, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}
	if backup.Version != BackupVersion {
		return nil, fmt.Errorf("unsupported backup version %q", backup.Version)
	}

	log.Printf("Backup version: %s, exported at: %s", backup.Version, backup.ExportedAt)

	stats := &ImportStats{}
	for _, record := range backup.Accounts {
		account, err := fromBackup(record)
		if err != nil {
			return stats, err
		}

		err = s.store.RestoreAccount(ctx, account)
		if errors.Is(err, repository.ErrDuplicateUsername) {
			log.Printf("Skipping existing account %s", record.Username)
			stats.Skipped++
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("failed to import account %s: %w", record.Username, err)
		}
		stats.Imported++
	}

	log.Printf("Account import completed: %d imported, %d skipped", stats.Imported, stats.Skipped)
	return stats, nil
}

func toBackup(account *models.Account) AccountBackup {
	topics := make(map[string]models.TopicStats, len(models.AllTopics))
	for _, t := range models.AllTopics {
		topics[string(t)] = account.Stats(t)
	}
	return AccountBackup{
		ID:               account.ID,
		Username:         account.Username,
		CredentialHash:   account.CredentialHash,
		Age:              account.Age,
		Role:             string(account.Role),
		GuardianID:       account.GuardianID,
		Topics:           topics,
		LastActivityDate: account.LastActivityDate,
		Streak:           account.Streak,
		DailyHistory:     account.DailyHistory,
		SpentPoints:      account.SpentPoints,
		Inventory:        account.Inventory,
		CreatedAt:        account.CreatedAt,
	}
}

func fromBackup(record AccountBackup) (*models.Account, error) {
	if record.ID == "" || record.Username == "" || record.CredentialHash == "" {
		return nil, fmt.Errorf("backup record %q is missing id, username or credential", record.Username)
	}
	role, ok := models.ParseRole(record.Role)
	if !ok {
		return nil, fmt.Errorf("backup record %q has unknown role %q", record.Username, record.Role)
	}

	topics := make(map[models.Topic]models.TopicStats, len(record.Topics))
	for name, stats := range record.Topics {
		topic, err := models.ParseTopic(name)
		if err != nil {
			return nil, fmt.Errorf("backup record %q: %w", record.Username, err)
		}
		if stats.Score < 0 || stats.Failures < 0 {
			return nil, fmt.Errorf("backup record %q has negative counters for %s", record.Username, topic)
		}
		if stats.Score > models.MaxCounter || stats.Failures > models.MaxCounter {
			return nil, fmt.Errorf("backup record %q has counters above %d for %s", record.Username, models.MaxCounter, topic)
		}
		topics[topic] = stats
	}
	if record.SpentPoints < 0 || record.Streak < 0 {
		return nil, fmt.Errorf("backup record %q has negative counters", record.Username)
	}

	account := &models.Account{Topics: topics}
	if record.SpentPoints > account.TotalScore() {
		return nil, fmt.Errorf("backup record %q spent %d of %d points", record.Username, record.SpentPoints, account.TotalScore())
	}

	// History must be one entry per day in date order
	previous := ""
	for _, entry := range record.DailyHistory {
		if _, err := time.Parse(models.DateLayout, entry.Date); err != nil {
			return nil, fmt.Errorf("backup record %q has invalid history date %q", record.Username, entry.Date)
		}
		if entry.Date <= previous {
			return nil, fmt.Errorf("backup record %q has history for %s out of order or twice", record.Username, entry.Date)
		}
		if entry.CorrectCount < 0 || entry.IncorrectCount < 0 {
			return nil, fmt.Errorf("backup record %q has negative history counts for %s", record.Username, entry.Date)
		}
		previous = entry.Date
	}

	return &models.Account{
		ID:               record.ID,
		Username:         record.Username,
		CredentialHash:   record.CredentialHash,
		Age:              record.Age,
		Role:             role,
		GuardianID:       record.GuardianID,
		Topics:           topics,
		LastActivityDate: record.LastActivityDate,
		Streak:           record.Streak,
		DailyHistory:     record.DailyHistory,
		SpentPoints:      record.SpentPoints,
		Inventory:        record.Inventory,
		CreatedAt:        record.CreatedAt,
	}, nil
}
