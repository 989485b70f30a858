// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/votingday/kiosk/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names
const (
	votersCollection     = "voters"
	candidatesCollection = "candidates"
	jobsCollection       = "settlement_jobs"
)

// MongoStore implements Store on MongoDB. Conditional writes are single
// FindOneAndUpdate calls whose filter carries the guard predicate.
type MongoStore struct {
	client     *mongo.Client
	voters     *mongo.Collection
	candidates *mongo.Collection
	jobs       *mongo.Collection
}

// NewMongoStore connects to uri and ensures the unique indexes exist.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:     client,
		voters:     db.Collection(votersCollection),
		candidates: db.Collection(candidatesCollection),
		jobs:       db.Collection(jobsCollection),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := []struct {
		collection *mongo.Collection
		model      mongo.IndexModel
	}{
		{s.voters, mongo.IndexModel{Keys: bson.D{{Key: "rfidTag", Value: 1}}, Options: unique}},
		{s.candidates, mongo.IndexModel{Keys: bson.D{{Key: "nationalId", Value: 1}}, Options: unique}},
		{s.candidates, mongo.IndexModel{Keys: bson.D{{Key: "registrationStatus", Value: 1}, {Key: "fullName", Value: 1}}}},
		{s.jobs, mongo.IndexModel{Keys: bson.D{{Key: "signature", Value: 1}}, Options: unique}},
		{s.jobs, mongo.IndexModel{Keys: bson.D{{Key: "status", Value: 1}, {Key: "dueAt", Value: 1}}}},
	}

	for _, idx := range indexes {
		if _, err := idx.collection.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.collection.Name(), err)
		}
	}

	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Drop removes every collection. Used by tests.
func (s *MongoStore) Drop(ctx context.Context) error {
	for _, c := range []*mongo.Collection{s.voters, s.candidates, s.jobs} {
		if err := c.Drop(ctx); err != nil {
			return err
		}
	}
	return s.ensureIndexes(ctx)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func (s *MongoStore) findVoter(ctx context.Context, filter bson.M) (*models.Voter, error) {
	var v models.Voter
	if err := s.voters.FindOne(ctx, filter).Decode(&v); err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (s *MongoStore) FindVoterByTag(ctx context.Context, tag string) (*models.Voter, error) {
	return s.findVoter(ctx, bson.M{"rfidTag": tag})
}

func (s *MongoStore) FindVoterByID(ctx context.Context, id string) (*models.Voter, error) {
	return s.findVoter(ctx, bson.M{"_id": id})
}

func (s *MongoStore) MarkVoted(ctx context.Context, voterID string, votedFor *models.CandidateSnapshot, at time.Time) (*models.Voter, error) {
	set := bson.M{"hasVoted": true, "votedAt": at.UTC()}
	if votedFor != nil {
		set["votedFor"] = votedFor
	}

	var v models.Voter
	err := s.voters.FindOneAndUpdate(ctx,
		bson.M{"_id": voterID, "hasVoted": false},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&v)
	if err == nil {
		return &v, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mark voted: %w", err)
	}

	// The guard failed: either the voter is gone or already voted
	existing, err := s.FindVoterByID(ctx, voterID)
	if err != nil {
		return nil, err
	}
	return existing, ErrConflict
}

func (s *MongoStore) IncrementVoteCount(ctx context.Context, candidateID string) (*models.Candidate, error) {
	var c models.Candidate
	err := s.candidates.FindOneAndUpdate(ctx,
		bson.M{"_id": candidateID},
		bson.M{"$inc": bson.M{"votes": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *MongoStore) FindCandidateByID(ctx context.Context, id string) (*models.Candidate, error) {
	var c models.Candidate
	if err := s.candidates.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *MongoStore) ListEligibleCandidates(ctx context.Context) ([]models.Candidate, error) {
	cursor, err := s.candidates.Find(ctx,
		bson.M{"registrationStatus": models.StatusCompleted},
		options.Find().SetSort(bson.D{{Key: "fullName", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	candidates := []models.Candidate{}
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	return candidates, nil
}

func (s *MongoStore) UpsertVoter(ctx context.Context, v *models.Voter) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Wallet.EncryptionMethod == "" {
		v.Wallet.EncryptionMethod = models.EncryptionNaclSecretbox
	}

	var stored models.Voter
	err := s.voters.FindOneAndUpdate(ctx,
		bson.M{"rfidTag": v.RFIDTag},
		bson.M{
			"$set": bson.M{
				"fingerprintHash": v.FingerprintHash,
				"walletDetails":   v.Wallet,
			},
			"$setOnInsert": bson.M{"_id": v.ID, "hasVoted": false},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&stored)
	if err != nil {
		return fmt.Errorf("upsert voter %s: %w", v.RFIDTag, err)
	}

	v.ID = stored.ID
	return nil
}

func (s *MongoStore) UpsertCandidate(ctx context.Context, c *models.Candidate) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Wallet.EncryptionMethod == "" {
		c.Wallet.EncryptionMethod = models.EncryptionNaclSecretbox
	}
	if c.RegistrationStatus == "" {
		c.RegistrationStatus = models.StatusPending
	}

	var stored models.Candidate
	err := s.candidates.FindOneAndUpdate(ctx,
		bson.M{"nationalId": c.NationalID},
		bson.M{
			"$set": bson.M{
				"fullName":           c.FullName,
				"dateOfBirth":        c.DateOfBirth.UTC(),
				"address":            c.Address,
				"email":              c.Email,
				"phoneNumber":        c.PhoneNumber,
				"party":              c.Party,
				"position":           c.Position,
				"registrationStatus": c.RegistrationStatus,
				"walletDetails":      c.Wallet,
			},
			"$setOnInsert": bson.M{"_id": c.ID, "votes": c.Votes},
		},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&stored)
	if err != nil {
		return fmt.Errorf("upsert candidate %s: %w", c.FullName, err)
	}

	c.ID = stored.ID
	return nil
}

// Settlement jobs

type jobDocument struct {
	ID        string    `bson:"_id"`
	Signature string    `bson:"signature"`
	Status    string    `bson:"status"`
	DueAt     time.Time `bson:"dueAt"`
	Attempts  int       `bson:"attempts"`
	LastError string    `bson:"lastError"`
	Payload   []byte    `bson:"payload"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (d jobDocument) job() models.SettlementJob {
	return models.SettlementJob{
		ID:        d.ID,
		Signature: d.Signature,
		Status:    d.Status,
		DueAt:     d.DueAt,
		Attempts:  d.Attempts,
		LastError: d.LastError,
		Payload:   d.Payload,
		CreatedAt: d.CreatedAt,
	}
}

func (s *MongoStore) InsertJob(ctx context.Context, job *models.SettlementJob) (bool, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.Status = models.JobPending

	_, err := s.jobs.InsertOne(ctx, jobDocument{
		ID:        job.ID,
		Signature: job.Signature,
		Status:    job.Status,
		DueAt:     job.DueAt.UTC(),
		Payload:   job.Payload,
		CreatedAt: job.CreatedAt.UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}
	return true, nil
}

func (s *MongoStore) GetJob(ctx context.Context, id string) (*models.SettlementJob, error) {
	var doc jobDocument
	if err := s.jobs.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, notFound(err)
	}
	job := doc.job()
	return &job, nil
}

func (s *MongoStore) ListJobs(ctx context.Context, status string) ([]models.SettlementJob, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}

	cursor, err := s.jobs.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "dueAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	var docs []jobDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}

	jobs := make([]models.SettlementJob, 0, len(docs))
	for _, doc := range docs {
		jobs = append(jobs, doc.job())
	}
	return jobs, nil
}

func (s *MongoStore) FinishJob(ctx context.Context, id, status, lastError string) error {
	return s.transitionJob(ctx, id, models.JobPending, bson.M{
		"$set": bson.M{"status": status, "lastError": lastError},
		"$inc": bson.M{"attempts": 1},
	})
}

func (s *MongoStore) RearmJob(ctx context.Context, id string, dueAt time.Time) error {
	return s.transitionJob(ctx, id, models.JobFailed, bson.M{
		"$set": bson.M{"status": models.JobPending, "dueAt": dueAt.UTC()},
	})
}

func (s *MongoStore) transitionJob(ctx context.Context, id, from string, update bson.M) error {
	result, err := s.jobs.UpdateOne(ctx, bson.M{"_id": id, "status": from}, update)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if result.MatchedCount == 1 {
		return nil
	}

	if _, err := s.GetJob(ctx, id); err != nil {
		return err
	}
	return ErrConflict
}
