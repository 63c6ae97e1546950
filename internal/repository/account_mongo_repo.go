package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"mathquest/internal/models"
)

const accountsCollection = "accounts"

type topicDocument struct {
	Score         int `bson:"score"`
	Failures      int `bson:"failures"`
	FrequencyTier int `bson:"frequencyTier"`
}

type historyDocument struct {
	Date           string `bson:"date"`
	CorrectCount   int    `bson:"correctCount"`
	IncorrectCount int    `bson:"incorrectCount"`
}

type accountDocument struct {
	ID               string                   `bson:"_id"`
	Username         string                   `bson:"username"`
	UsernameKey      string                   `bson:"usernameKey"`
	CredentialHash   string                   `bson:"credentialHash"`
	Age              int                      `bson:"age"`
	Role             string                   `bson:"role"`
	GuardianID       string                   `bson:"guardianId,omitempty"`
	Topics           map[string]topicDocument `bson:"topics"`
	LastActivityDate string                   `bson:"lastActivityDate"`
	Streak           int                      `bson:"streak"`
	DailyHistory     []historyDocument        `bson:"dailyHistory"`
	SpentPoints      int                      `bson:"spentPoints"`
	Inventory        []string                 `bson:"inventory"`
	CreatedAt        time.Time                `bson:"createdAt"`
}

// topicFields holds the document paths of one topic's counters
type topicFields struct {
	score         string
	failures      string
	frequencyTier string
}

// topicFieldPaths is the only way a topic turns into a document field path
var topicFieldPaths = map[models.Topic]topicFields{
	models.TopicAddition:       {"topics.addition.score", "topics.addition.failures", "topics.addition.frequencyTier"},
	models.TopicSubtraction:    {"topics.subtraction.score", "topics.subtraction.failures", "topics.subtraction.frequencyTier"},
	models.TopicMultiplication: {"topics.multiplication.score", "topics.multiplication.failures", "topics.multiplication.frequencyTier"},
	models.TopicDivision:       {"topics.division.score", "topics.division.failures", "topics.division.frequencyTier"},
	models.TopicPercent:        {"topics.percent.score", "topics.percent.failures", "topics.percent.frequencyTier"},
}

// MongoAccountStore stores each account as one document
type MongoAccountStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoAccountStore connects to MongoDB and ensures the account indexes exist
func NewMongoAccountStore(ctx context.Context, uri, databaseName string) (*MongoAccountStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	store := &MongoAccountStore{
		client:     client,
		collection: client.Database(databaseName).Collection(accountsCollection),
	}
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return store, nil
}

func (s *MongoAccountStore) ensureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "usernameKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "guardianId", Value: 1}},
		},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create account indexes: %w", err)
	}
	return nil
}

// Ping checks the MongoDB connection
func (s *MongoAccountStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects from MongoDB
func (s *MongoAccountStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateAccount inserts a new account with zeroed counters for every topic
func (s *MongoAccountStore) CreateAccount(ctx context.Context, account *models.Account) error {
	account.Topics = newTopicMap()
	account.DailyHistory = nil
	account.Inventory = nil
	account.Streak = 0
	account.SpentPoints = 0
	account.LastActivityDate = ""
	return s.insert(ctx, account)
}

// RestoreAccount inserts an account exactly as given
func (s *MongoAccountStore) RestoreAccount(ctx context.Context, account *models.Account) error {
	return s.insert(ctx, account)
}

func (s *MongoAccountStore) insert(ctx context.Context, account *models.Account) error {
	account.UsernameKey = models.UsernameKey(account.Username)
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	if _, err := s.collection.InsertOne(ctx, toDocument(account)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return s.conflictError(ctx, account, err)
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// conflictError names the account that a failed insert collided with
func (s *MongoAccountStore) conflictError(ctx context.Context, account *models.Account, cause error) error {
	checks := []struct {
		filter bson.M
		err    error
	}{
		{bson.M{"usernameKey": account.UsernameKey}, ErrDuplicateUsername},
		{bson.M{"_id": account.ID}, ErrDuplicateID},
	}
	for _, check := range checks {
		n, err := s.collection.CountDocuments(ctx, check.filter)
		if err != nil {
			break
		}
		if n > 0 {
			return check.err
		}
	}
	return fmt.Errorf("failed to insert account: %w", cause)
}

// GetAccountByUsername retrieves an account by username, ignoring case
func (s *MongoAccountStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"usernameKey": models.UsernameKey(username)})
}

// GetAccountByID retrieves an account by ID
func (s *MongoAccountStore) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoAccountStore) findOne(ctx context.Context, filter bson.M) (*models.Account, error) {
	var doc accountDocument
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return fromDocument(&doc), nil
}

// ListAccountsByGuardian retrieves the learners linked to a guardian
func (s *MongoAccountStore) ListAccountsByGuardian(ctx context.Context, guardianID string) ([]models.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "usernameKey", Value: 1}})
	return s.find(ctx, bson.M{"guardianId": guardianID}, opts)
}

// ListAllAccounts retrieves every account
func (s *MongoAccountStore) ListAllAccounts(ctx context.Context) ([]models.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "usernameKey", Value: 1}})
	return s.find(ctx, bson.M{}, opts)
}

func (s *MongoAccountStore) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]models.Account, error) {
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []accountDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}

	accounts := make([]models.Account, 0, len(docs))
	for i := range docs {
		accounts = append(accounts, *fromDocument(&docs[i]))
	}
	return accounts, nil
}

// IncrementTopicScore adds points to a topic score with $inc
func (s *MongoAccountStore) IncrementTopicScore(ctx context.Context, accountID string, topic models.Topic, points int) (int, error) {
	fields, ok := topicFieldPaths[topic]
	if !ok {
		return 0, fmt.Errorf("unknown topic %q", topic)
	}
	doc, err := s.incrementField(ctx, accountID, fields.score, points)
	if err != nil {
		return 0, fmt.Errorf("failed to increment score: %w", err)
	}
	return doc.Topics[string(topic)].Score, nil
}

// IncrementTopicFailures adds one failure to a topic with $inc
func (s *MongoAccountStore) IncrementTopicFailures(ctx context.Context, accountID string, topic models.Topic) (int, error) {
	fields, ok := topicFieldPaths[topic]
	if !ok {
		return 0, fmt.Errorf("unknown topic %q", topic)
	}
	doc, err := s.incrementField(ctx, accountID, fields.failures, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to increment failures: %w", err)
	}
	return doc.Topics[string(topic)].Failures, nil
}

func (s *MongoAccountStore) incrementField(ctx context.Context, accountID, path string, delta int) (*accountDocument, error) {
	if delta < 0 {
		return nil, fmt.Errorf("negative increment %d", delta)
	}
	if delta > models.MaxCounter {
		return nil, ErrCounterLimit
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"topics": 1})

	// $not also matches documents where the counter is still missing
	filter := bson.M{
		"_id": accountID,
		path:  bson.M{"$not": bson.M{"$gt": models.MaxCounter - delta}},
	}

	var doc accountDocument
	err := s.collection.FindOneAndUpdate(ctx, filter, bson.M{"$inc": bson.M{path: delta}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, countErr := s.collection.CountDocuments(ctx, bson.M{"_id": accountID})
		if countErr == nil && n > 0 {
			return nil, ErrCounterLimit
		}
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// CompareAndSetStreak updates the streak when the last activity date has not moved
func (s *MongoAccountStore) CompareAndSetStreak(ctx context.Context, accountID, expectedLastDate, newLastDate string, newStreak int) (bool, error) {
	filter := bson.M{"_id": accountID, "lastActivityDate": expectedLastDate}
	update := bson.M{"$set": bson.M{"streak": newStreak, "lastActivityDate": newLastDate}}

	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to update streak: %w", err)
	}
	return result.MatchedCount == 1, nil
}

// RecordDailyOutcome bumps today's history entry in place, or appends it when missing.
// The append is guarded on the date so two writers cannot both add an entry for one day.
func (s *MongoAccountStore) RecordDailyOutcome(ctx context.Context, accountID, date string, correct bool) error {
	counter := "dailyHistory.$.incorrectCount"
	entry := historyDocument{Date: date, IncorrectCount: 1}
	if correct {
		counter = "dailyHistory.$.correctCount"
		entry = historyDocument{Date: date, CorrectCount: 1}
	}

	for attempt := 0; attempt < 2; attempt++ {
		result, err := s.collection.UpdateOne(ctx,
			bson.M{"_id": accountID, "dailyHistory.date": date},
			bson.M{"$inc": bson.M{counter: 1}},
		)
		if err != nil {
			return fmt.Errorf("failed to update daily history: %w", err)
		}
		if result.MatchedCount == 1 {
			return nil
		}

		result, err = s.collection.UpdateOne(ctx,
			bson.M{"_id": accountID, "dailyHistory.date": bson.M{"$ne": date}},
			bson.M{"$push": bson.M{"dailyHistory": entry}},
		)
		if err != nil {
			return fmt.Errorf("failed to append daily history: %w", err)
		}
		if result.MatchedCount == 1 {
			return nil
		}
	}
	return fmt.Errorf("failed to record daily history for %s", date)
}

// SetFrequencyTier stores the frequency counter of a topic
func (s *MongoAccountStore) SetFrequencyTier(ctx context.Context, accountID string, topic models.Topic, tier int) error {
	fields, ok := topicFieldPaths[topic]
	if !ok {
		return fmt.Errorf("unknown topic %q", topic)
	}
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": accountID},
		bson.M{"$set": bson.M{fields.frequencyTier: tier}},
	)
	if err != nil {
		return fmt.Errorf("failed to set frequency tier: %w", err)
	}
	return nil
}

// Spend charges the account only if the document still has enough balance.
// The filter evaluates the balance on the server so the check and the update are one operation.
func (s *MongoAccountStore) Spend(ctx context.Context, accountID, itemID string, cost int) (*models.Account, error) {
	scores := bson.A{}
	for _, t := range models.AllTopics {
		scores = append(scores, bson.M{"$ifNull": bson.A{"$" + topicFieldPaths[t].score, 0}})
	}
	balance := bson.M{"$subtract": bson.A{
		bson.M{"$add": scores},
		bson.M{"$ifNull": bson.A{"$spentPoints", 0}},
	}}

	filter := bson.M{
		"_id":   accountID,
		"$expr": bson.M{"$gte": bson.A{balance, cost}},
	}
	update := bson.M{
		"$inc":  bson.M{"spentPoints": cost},
		"$push": bson.M{"inventory": itemID},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc accountDocument
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to spend points: %w", err)
	}
	return fromDocument(&doc), nil
}

func toDocument(account *models.Account) *accountDocument {
	topics := make(map[string]topicDocument, len(models.AllTopics))
	for _, t := range models.AllTopics {
		stats := account.Stats(t)
		topics[string(t)] = topicDocument{
			Score:         stats.Score,
			Failures:      stats.Failures,
			FrequencyTier: stats.FrequencyTier,
		}
	}

	history := make([]historyDocument, 0, len(account.DailyHistory))
	for _, entry := range account.DailyHistory {
		history = append(history, historyDocument(entry))
	}

	inventory := account.Inventory
	if inventory == nil {
		inventory = []string{}
	}

	return &accountDocument{
		ID:               account.ID,
		Username:         account.Username,
		UsernameKey:      account.UsernameKey,
		CredentialHash:   account.CredentialHash,
		Age:              account.Age,
		Role:             string(account.Role),
		GuardianID:       account.GuardianID,
		Topics:           topics,
		LastActivityDate: account.LastActivityDate,
		Streak:           account.Streak,
		DailyHistory:     history,
		SpentPoints:      account.SpentPoints,
		Inventory:        inventory,
		CreatedAt:        account.CreatedAt,
	}
}

func fromDocument(doc *accountDocument) *models.Account {
	account := &models.Account{
		ID:               doc.ID,
		Username:         doc.Username,
		UsernameKey:      doc.UsernameKey,
		CredentialHash:   doc.CredentialHash,
		Age:              doc.Age,
		Role:             models.Role(doc.Role),
		GuardianID:       doc.GuardianID,
		Topics:           newTopicMap(),
		LastActivityDate: doc.LastActivityDate,
		Streak:           doc.Streak,
		SpentPoints:      doc.SpentPoints,
		Inventory:        doc.Inventory,
		CreatedAt:        doc.CreatedAt,
	}
	for name, stats := range doc.Topics {
		topic, err := models.ParseTopic(name)
		if err != nil {
			continue
		}
		account.Topics[topic] = models.TopicStats{
			Score:         stats.Score,
			Failures:      stats.Failures,
			FrequencyTier: stats.FrequencyTier,
		}
	}
	for _, entry := range doc.DailyHistory {
		account.DailyHistory = append(account.DailyHistory, models.DailyHistoryEntry(entry))
	}
	return account
}
