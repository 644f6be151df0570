// Package mongo provides a ReportStore backed by a MongoDB collection.
package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/custodia-labs/sizhen/internal/core/domain"
	"github.com/custodia-labs/sizhen/internal/core/ports/driven"
)

// Ensure ReportStore implements the interface.
var _ driven.ReportStore = (*ReportStore)(nil)

// CollectionName is the collection holding diagnosis reports.
const CollectionName = "diagnosis_reports"

// connectTimeout bounds the initial ping.
const connectTimeout = 10 * time.Second

// reportDocument is the stored shape. The full report is kept as JSON so it
// round-trips exactly; the other fields serve queries.
type reportDocument struct {
	ID         string    `bson:"_id"`
	UserID     string    `bson:"user_id"`
	SessionID  string    `bson:"session_id"`
	Status     string    `bson:"status"`
	Confidence float64   `bson:"confidence"`
	CreatedAt  time.Time `bson:"created_at"`
	CreatedNs  int64     `bson:"created_ns"`
	Body       string    `bson:"body"`
}

// ReportStore persists reports in MongoDB, upserting by report ID.
type ReportStore struct {
	collection *mongodriver.Collection
}

// Connect opens a client and verifies the server is reachable.
func Connect(ctx context.Context, uri string) (*mongodriver.Client, error) {
	client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// NewReportStore creates a report store on the given database.
func NewReportStore(db *mongodriver.Database) *ReportStore {
	return &ReportStore{collection: db.Collection(CollectionName)}
}

// EnsureIndexes creates the session history index.
func (s *ReportStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "session_id", Value: 1},
			{Key: "created_ns", Value: -1},
		},
		Options: options.Index().SetName("session_history"),
	})
	if err != nil {
		return fmt.Errorf("create report index: %w", err)
	}
	return nil
}

// Save stores or replaces a report.
func (s *ReportStore) Save(ctx context.Context, report domain.DiagnosisReport) error {
	doc, err := toDocument(report)
	if err != nil {
		return err
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// Get retrieves a report by ID.
func (s *ReportStore) Get(ctx context.Context, id string) (*domain.DiagnosisReport, error) {
	var doc reportDocument
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	return fromDocument(doc)
}

// ListBySession returns a session's reports, newest first.
func (s *ReportStore) ListBySession(ctx context.Context, userID, sessionID string) ([]domain.DiagnosisReport, error) {
	cursor, err := s.collection.Find(ctx, sessionFilter(userID, sessionID), listOptions())
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reportDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}

	reports := make([]domain.DiagnosisReport, 0, len(docs))
	for _, doc := range docs {
		report, err := fromDocument(doc)
		if err != nil {
			return nil, err
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

func sessionFilter(userID, sessionID string) bson.M {
	return bson.M{"user_id": userID, "session_id": sessionID}
}

func listOptions() *options.FindOptions {
	return options.Find().SetSort(bson.D{
		{Key: "created_ns", Value: -1},
		{Key: "_id", Value: -1},
	})
}

func toDocument(report domain.DiagnosisReport) (reportDocument, error) {
	if report.ID == "" {
		return reportDocument{}, fmt.Errorf("%w: report id is required", domain.ErrInvalidInput)
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	body, err := json.Marshal(report)
	if err != nil {
		return reportDocument{}, fmt.Errorf("marshal report: %w", err)
	}
	return reportDocument{
		ID:         report.ID,
		UserID:     report.UserID,
		SessionID:  report.SessionID,
		Status:     string(report.Status),
		Confidence: report.Confidence,
		CreatedAt:  report.CreatedAt.UTC(),
		CreatedNs:  report.CreatedAt.UnixNano(),
		Body:       string(body),
	}, nil
}

func fromDocument(doc reportDocument) (*domain.DiagnosisReport, error) {
	var report domain.DiagnosisReport
	if err := json.Unmarshal([]byte(doc.Body), &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", doc.ID, err)
	}
	return &report, nil
}
