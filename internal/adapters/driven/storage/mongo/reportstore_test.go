package mongo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// testURIEnv names a MongoDB server for the live tests.
const testURIEnv = "SIZHEN_TEST_MONGO_URI"

func testReport(id, session string, createdAt time.Time) domain.DiagnosisReport {
	return domain.DiagnosisReport{
		ID:        id,
		UserID:    "user-1",
		SessionID: session,
		Status:    domain.StatusDone,
		Syndromes: []domain.SyndromeCandidate{{Name: domain.SyndromeQiDeficiency, Score: 1.3, Confidence: 0.8}},
		ModalityResults: map[domain.Modality]*domain.AnalysisResult{
			domain.ModalityInquiry: {Modality: domain.ModalityInquiry, Features: []domain.AnalysisFeature{{Name: "fatigue", Confidence: 0.9}}},
		},
		Confidence: 0.8,
		CreatedAt:  createdAt,
		Duration:   2 * time.Second,
	}
}

func TestToDocument(t *testing.T) {
	created := time.Date(2026, 5, 4, 10, 0, 0, 123456789, time.FixedZone("CST", 8*3600))

	doc, err := toDocument(testReport("r-1", "s-1", created))

	require.NoError(t, err)
	assert.Equal(t, "r-1", doc.ID)
	assert.Equal(t, "user-1", doc.UserID)
	assert.Equal(t, "s-1", doc.SessionID)
	assert.Equal(t, "DONE", doc.Status)
	assert.Equal(t, time.UTC, doc.CreatedAt.Location())
	assert.Equal(t, created.UnixNano(), doc.CreatedNs)
	assert.Contains(t, doc.Body, `"fatigue"`)
}

func TestToDocument_RequiresID(t *testing.T) {
	_, err := toDocument(testReport("", "s-1", time.Now()))

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// TestDocument_BSONRoundTrip tests the stored shape survives BSON encoding
// with nanosecond creation time intact
func TestDocument_BSONRoundTrip(t *testing.T) {
	created := time.Date(2026, 5, 4, 10, 0, 0, 123456789, time.UTC)
	doc, err := toDocument(testReport("r-1", "s-1", created))
	require.NoError(t, err)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)
	var keys bson.M
	require.NoError(t, bson.Unmarshal(raw, &keys))
	assert.Equal(t, "r-1", keys["_id"])
	assert.Contains(t, keys, "created_ns")

	var decoded reportDocument
	require.NoError(t, bson.Unmarshal(raw, &decoded))
	report, err := fromDocument(decoded)
	require.NoError(t, err)
	assert.True(t, created.Equal(report.CreatedAt))
	assert.Equal(t, 2*time.Second, report.Duration)
	assert.Equal(t, "fatigue", report.ModalityResults[domain.ModalityInquiry].Features[0].Name)
}

func TestFromDocument_CorruptBody(t *testing.T) {
	_, err := fromDocument(reportDocument{ID: "r-1", Body: "{"})

	assert.ErrorContains(t, err, "decode report r-1")
}

func TestQueryShapes(t *testing.T) {
	assert.Equal(t, bson.M{"user_id": "u", "session_id": "s"}, sessionFilter("u", "s"))
	assert.Equal(t, bson.D{{Key: "created_ns", Value: -1}, {Key: "_id", Value: -1}}, listOptions().Sort)
}

func TestReportStore_Live(t *testing.T) {
	uri := os.Getenv(testURIEnv)
	if uri == "" {
		t.Skipf("%s not set", testURIEnv)
	}
	ctx := context.Background()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	db := client.Database("sizhen_test_" + uuid.NewString()[:8])
	t.Cleanup(func() { _ = db.Drop(ctx) })
	store := NewReportStore(db)
	require.NoError(t, store.EnsureIndexes(ctx))

	base := time.Now()
	require.NoError(t, store.Save(ctx, testReport("old", "s-1", base)))
	require.NoError(t, store.Save(ctx, testReport("new", "s-1", base.Add(time.Minute))))
	replaced := testReport("old", "s-1", base)
	replaced.Status = domain.StatusFailed
	require.NoError(t, store.Save(ctx, replaced))

	got, err := store.Get(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := store.ListBySession(ctx, "user-1", "s-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)
}
