// Package mongo provides a MongoDB-backed implementation of the storage.Store interface.
//
// A group is a single document with its members, bills and settlements
// embedded, so every group mutation is one filtered replace on {_id, version}.
// Ledger entries written alongside a mutation share a multi-document
// transaction with it, which requires a replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mmynk/groupledger/internal/models"
	"github.com/mmynk/groupledger/internal/storage"
)

var _ storage.Store = (*MongoStore)(nil)

const (
	groupsCollection  = "groups"
	usersCollection   = "users"
	entriesCollection = "ledger_entries"

	connectTimeout = 10 * time.Second
)

// MongoStore implements storage.Store using MongoDB.
type MongoStore struct {
	client     *mongo.Client
	groups     *mongo.Collection
	users      *mongo.Collection
	entries    *mongo.Collection
	maxRetries int
}

// Option configures a MongoStore.
type Option func(*MongoStore)

// WithMaxRetries sets the read-modify-write retry budget for UpdateGroup.
func WithMaxRetries(n int) Option {
	return func(s *MongoStore) { s.maxRetries = n }
}

// New connects to uri, pings the server and ensures indexes on database.
func New(ctx context.Context, uri, database string, opts ...Option) (*MongoStore, error) {
	if uri == "" {
		return nil, errors.New("mongo uri cannot be empty")
	}
	if database == "" {
		return nil, errors.New("mongo database name cannot be empty")
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:     client,
		groups:     db.Collection(groupsCollection),
		users:      db.Collection(usersCollection),
		entries:    db.Collection(entriesCollection),
		maxRetries: storage.DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}
	if _, err := s.groups.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "members.user_id", Value: 1}, {Key: "is_active", Value: 1}},
	}); err != nil {
		return fmt.Errorf("failed to create groups index: %w", err)
	}
	if _, err := s.entries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "seq", Value: -1}},
	}); err != nil {
		return fmt.Errorf("failed to create ledger entries index: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// CreateGroup inserts a new group document.
func (s *MongoStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if group.CreatedAt == 0 {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	group.Version = 1

	if _, err := s.groups.InsertOne(ctx, toGroupDoc(group)); err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID.
func (s *MongoStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return s.findGroup(ctx, groupID)
}

func (s *MongoStore) findGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var doc groupDoc
	err := s.groups.FindOne(ctx, bson.M{"_id": groupID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", storage.ErrGroupNotFound, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return doc.toModel()
}

// ListGroupsForMember returns active groups where userID is an active member.
func (s *MongoStore) ListGroupsForMember(ctx context.Context, userID string) ([]*models.Group, error) {
	filter := bson.M{
		"is_active": true,
		"members": bson.M{"$elemMatch": bson.M{"user_id": userID, "is_active": true}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	return s.findGroups(ctx, filter, opts)
}

// ListActiveGroups returns every active group.
func (s *MongoStore) ListActiveGroups(ctx context.Context) ([]*models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	return s.findGroups(ctx, bson.M{"is_active": true}, opts)
}

func (s *MongoStore) findGroups(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Group, error) {
	cur, err := s.groups.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	var docs []groupDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode groups: %w", err)
	}

	groups := make([]*models.Group, 0, len(docs))
	for i := range docs {
		g, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// UpdateGroup runs fn against the current group document and replaces it
// only if the stored version is unchanged.
func (s *MongoStore) UpdateGroup(ctx context.Context, groupID string, fn storage.Mutation) (*models.Group, error) {
	var updated *models.Group
	err := storage.Retry(ctx, s.maxRetries, func() error {
		g, err := s.updateGroupOnce(ctx, groupID, fn)
		if err != nil {
			return err
		}
		updated = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *MongoStore) updateGroupOnce(ctx context.Context, groupID string, fn storage.Mutation) (*models.Group, error) {
	current, err := s.findGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	working := current.Clone()
	entries, err := fn(working)
	if err != nil {
		return nil, err
	}
	working.Version = current.Version + 1
	working.UpdatedAt = time.Now().Unix()

	replace := func(ctx context.Context) error {
		res, err := s.groups.ReplaceOne(ctx,
			bson.M{"_id": groupID, "version": current.Version},
			toGroupDoc(working),
		)
		if err != nil {
			return fmt.Errorf("failed to replace group: %w", err)
		}
		if res.MatchedCount == 0 {
			return storage.ErrStaleWrite
		}
		return s.insertEntries(ctx, entries)
	}

	if len(entries) == 0 {
		if err := replace(ctx); err != nil {
			return nil, err
		}
		return working, nil
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, replace(sc)
	})
	if err != nil {
		return nil, err
	}
	return working, nil
}

func (s *MongoStore) insertEntries(ctx context.Context, entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(entries))
	for i := range entries {
		docs = append(docs, s.prepareEntry(&entries[i]))
	}
	if _, err := s.entries.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert ledger entries: %w", err)
	}
	return nil
}

func (s *MongoStore) prepareEntry(e *models.LedgerEntry) entryDoc {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now()
	if e.CreatedAt == 0 {
		e.CreatedAt = now.Unix()
	}
	return toEntryDoc(e, now.UnixNano())
}

// CreateLedgerEntry persists a single ledger entry.
func (s *MongoStore) CreateLedgerEntry(ctx context.Context, entry *models.LedgerEntry) error {
	if _, err := s.entries.InsertOne(ctx, s.prepareEntry(entry)); err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// ListLedgerEntries returns the user's entries matching filter, newest first.
func (s *MongoStore) ListLedgerEntries(ctx context.Context, userID string, filter storage.LedgerFilter) ([]*models.LedgerEntry, error) {
	query := bson.M{"user_id": userID}
	if filter.Type != "" {
		query["type"] = string(filter.Type)
	}
	created := bson.M{}
	if filter.From > 0 {
		created["$gte"] = filter.From
	}
	if filter.To > 0 {
		created["$lt"] = filter.To
	}
	if len(created) > 0 {
		query["created_at"] = created
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	cur, err := s.entries.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	var docs []entryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}

	entries := make([]*models.LedgerEntry, 0, len(docs))
	for i := range docs {
		e, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// SummarizeLedger totals the user's entries per type with an aggregation.
// Amounts are stored as strings and converted to Decimal128 for the sum.
func (s *MongoStore) SummarizeLedger(ctx context.Context, userID string) (*models.LedgerSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$type",
			"total": bson.M{"$sum": bson.M{"$toDecimal": "$amount"}},
			"count": bson.M{"$sum": 1},
		}}},
	}
	cur, err := s.entries.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize ledger: %w", err)
	}
	var rows []summaryDoc
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode ledger summary: %w", err)
	}

	summary := &models.LedgerSummary{Credits: decimal.Zero, Debits: decimal.Zero}
	for _, row := range rows {
		total, err := parseAmount(row.Total.String())
		if err != nil {
			return nil, err
		}
		switch models.EntryType(row.Type) {
		case models.EntryCredit:
			summary.Credits = total
		case models.EntryDebit:
			summary.Debits = total
		}
		summary.Count += row.Count
	}
	return summary, nil
}

// CreateUser inserts a new user. The unique email index reports duplicates.
func (s *MongoStore) CreateUser(ctx context.Context, user *models.User) error {
	if _, err := s.users.InsertOne(ctx, toUserDoc(user)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by their email address.
func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

// GetUserByID retrieves a user by their ID.
func (s *MongoStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return doc.toModel(), nil
}
