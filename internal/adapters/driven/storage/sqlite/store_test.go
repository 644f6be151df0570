package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sizhen/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, store.Close()) })

	return store
}

func testReport(id string, createdAt time.Time) domain.DiagnosisReport {
	return domain.DiagnosisReport{
		ID:        id,
		UserID:    "user-1",
		SessionID: "session-1",
		Status:    domain.StatusDone,
		ModalityResults: map[domain.Modality]*domain.AnalysisResult{
			domain.ModalityLook: {
				AnalysisID: "a-1",
				Modality:   domain.ModalityLook,
				Features:   []domain.AnalysisFeature{{Name: "purple_tongue", Value: 1, Confidence: 0.8}},
				Detail:     domain.ModalityDetail{Kind: domain.DetailTongue},
			},
		},
		ModalityErrors:  map[domain.Modality]string{domain.ModalityListen: "modality unavailable"},
		Syndromes:       []domain.SyndromeCandidate{{Name: domain.SyndromeBloodStasis, Score: 1.1, Confidence: 0.7}},
		Recommendations: []string{"activate blood and resolve stasis"},
		Confidence:      0.7,
		CreatedAt:       createdAt,
		Duration:        1500 * time.Millisecond,
	}
}

// ==================== Store Creation Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")

	store, err := NewStore(dir)

	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, filepath.Join(dir, DatabaseFile), store.Path())
	assert.FileExists(t, store.Path())
}

func TestNewStore_ReopenSkipsAppliedMigrations(t *testing.T) {
	dir := t.TempDir()
	first, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.ReportStore().Save(context.Background(), testReport("r-1", time.Now())))
	require.NoError(t, first.Close())

	second, err := NewStore(dir)
	require.NoError(t, err)
	defer second.Close()

	var version int
	require.NoError(t, second.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 1, version)
	_, err = second.ReportStore().Get(context.Background(), "r-1")
	assert.NoError(t, err)
}

func TestStore_Migrate_SkipsUnversionedFiles(t *testing.T) {
	store := setupTestStore(t)

	err := store.migrate(fstest.MapFS{
		"README.up.sql":      {Data: []byte("this is not sql")},
		"002_extra.up.sql":   {Data: []byte("CREATE TABLE extra (id TEXT)")},
		"002_extra.down.sql": {Data: []byte("DROP TABLE extra")},
	})

	require.NoError(t, err)
	var version int
	require.NoError(t, store.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 2, version)
}

func TestStore_Migrate_BadSQL(t *testing.T) {
	store := setupTestStore(t)

	err := store.migrate(fstest.MapFS{"009_broken.up.sql": {Data: []byte("CREATE TABLEX")}})

	assert.ErrorContains(t, err, "009_broken.up.sql")
}

// ==================== Report Store Tests ====================

func TestReportStore_SaveAndGet(t *testing.T) {
	reports := setupTestStore(t).ReportStore()
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, reports.Save(ctx, testReport("r-1", created)))
	got, err := reports.Get(ctx, "r-1")

	require.NoError(t, err)
	assert.Equal(t, "r-1", got.ID)
	assert.Equal(t, domain.StatusDone, got.Status)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
	require.Contains(t, got.ModalityResults, domain.ModalityLook)
	assert.Equal(t, "purple_tongue", got.ModalityResults[domain.ModalityLook].Features[0].Name)
	assert.Equal(t, "modality unavailable", got.ModalityErrors[domain.ModalityListen])
	assert.Equal(t, []string{"activate blood and resolve stasis"}, got.Recommendations)
}

func TestReportStore_Save_Replaces(t *testing.T) {
	reports := setupTestStore(t).ReportStore()
	ctx := context.Background()
	report := testReport("r-1", time.Now())
	require.NoError(t, reports.Save(ctx, report))

	report.Status = domain.StatusFailed
	report.StatusMessage = domain.MessageFusionDegraded
	require.NoError(t, reports.Save(ctx, report))

	got, err := reports.Get(ctx, "r-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	list, err := reports.ListBySession(ctx, "user-1", "session-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReportStore_Save_RequiresID(t *testing.T) {
	reports := setupTestStore(t).ReportStore()

	err := reports.Save(context.Background(), testReport("", time.Now()))

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReportStore_Get_NotFound(t *testing.T) {
	reports := setupTestStore(t).ReportStore()

	_, err := reports.Get(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReportStore_ListBySession(t *testing.T) {
	reports := setupTestStore(t).ReportStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, reports.Save(ctx, testReport("r-old", base)))
	require.NoError(t, reports.Save(ctx, testReport("r-new", base.Add(time.Hour))))
	require.NoError(t, reports.Save(ctx, testReport("r-mid", base.Add(time.Minute))))
	other := testReport("r-other", base)
	other.SessionID = "session-2"
	require.NoError(t, reports.Save(ctx, other))

	list, err := reports.ListBySession(ctx, "user-1", "session-1")

	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"r-new", "r-mid", "r-old"}, ids)

	empty, err := reports.ListBySession(ctx, "user-9", "session-1")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// ==================== Progress Store Tests ====================

func TestProgressStore_Get_NotFound(t *testing.T) {
	progress := setupTestStore(t).ProgressStore()

	_, err := progress.Get(context.Background(), "user-1", "session-1")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProgressStore_Update_CreatesAndPersists(t *testing.T) {
	progress := setupTestStore(t).ProgressStore()
	ctx := context.Background()

	updated, err := progress.Update(ctx, "user-1", "session-1", func(p *domain.DiagnosisProgress) {
		p.Reset([]domain.Modality{domain.ModalityLook, domain.ModalityInquiry})
		p.MarkModality(domain.ModalityLook)
		p.Recalculate()
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, updated.Status)
	assert.InDelta(t, 0.3, updated.OverallProgress, 1e-9)

	got, err := progress.Get(ctx, "user-1", "session-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.True(t, got.LookCompleted)
	assert.False(t, got.InquiryCompleted)
	assert.Equal(t, []domain.Modality{domain.ModalityLook, domain.ModalityInquiry}, got.Expected)
	assert.InDelta(t, 0.3, got.OverallProgress, 1e-9)
}

func TestProgressStore_Update_SessionsIndependent(t *testing.T) {
	progress := setupTestStore(t).ProgressStore()
	ctx := context.Background()

	_, err := progress.Update(ctx, "user-1", "a", func(p *domain.DiagnosisProgress) {
		p.Transition(domain.StatusDone, domain.MessageDone)
	})
	require.NoError(t, err)
	_, err = progress.Update(ctx, "user-1", "b", func(p *domain.DiagnosisProgress) {
		p.Transition(domain.StatusFusing, domain.MessageFusing)
	})
	require.NoError(t, err)

	a, err := progress.Get(ctx, "user-1", "a")
	require.NoError(t, err)
	b, err := progress.Get(ctx, "user-1", "b")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDone, a.Status)
	assert.Equal(t, domain.StatusFusing, b.Status)
}

// TestProgressStore_Update_Concurrent tests no marks are lost when
// goroutines update the same session
func TestProgressStore_Update_Concurrent(t *testing.T) {
	progress := setupTestStore(t).ProgressStore()
	ctx := context.Background()
	_, err := progress.Update(ctx, "user-1", "session-1", func(p *domain.DiagnosisProgress) {
		p.Reset(domain.AllModalities())
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, m := range domain.AllModalities() {
		wg.Add(1)
		go func(m domain.Modality) {
			defer wg.Done()
			_, err := progress.Update(ctx, "user-1", "session-1", func(p *domain.DiagnosisProgress) {
				p.MarkModality(m)
				p.Recalculate()
			})
			assert.NoError(t, err, fmt.Sprintf("update %s", m))
		}(m)
	}
	wg.Wait()

	got, err := progress.Get(ctx, "user-1", "session-1")
	require.NoError(t, err)
	for _, m := range domain.AllModalities() {
		assert.True(t, got.ModalityCompleted(m), "%s mark lost", m)
	}
	assert.InDelta(t, 0.6, got.OverallProgress, 1e-9)
}

func TestProgressStore_Update_CancelledContext(t *testing.T) {
	progress := setupTestStore(t).ProgressStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := progress.Update(ctx, "user-1", "session-1", func(*domain.DiagnosisProgress) {})

	assert.Error(t, err)
}
