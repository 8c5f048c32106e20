package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ReportStore {
	t.Helper()
	s, err := NewReportStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string) Record {
	return Record{
		ID:             id,
		URL:            "https://shop.example.com/",
		FirstPartyKey:  "example.com",
		TotalRequests:  12,
		ClassifiedURLs: 10,
		EntityCount:    4,
		ReportJSON:     []byte(`{"runId":"` + id + `"}`),
	}
}

func TestReportStore_SaveAndGet(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(sampleRecord("run-1")))

	rec, err := s.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", rec.ID)
	assert.Equal(t, "https://shop.example.com/", rec.URL)
	assert.Equal(t, "example.com", rec.FirstPartyKey)
	assert.Equal(t, 12, rec.TotalRequests)
	assert.Equal(t, 10, rec.ClassifiedURLs)
	assert.Equal(t, 4, rec.EntityCount)
	assert.JSONEq(t, `{"runId":"run-1"}`, string(rec.ReportJSON))
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestReportStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReportStore_SaveRequiresID(t *testing.T) {
	s := newTestStore(t)
	err := s.Save(Record{URL: "https://example.com/"})
	require.Error(t, err)
}

func TestReportStore_DuplicateIDRejected(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Save(sampleRecord("run-1")))
	assert.Error(t, s.Save(sampleRecord("run-1")))
}

func TestReportStore_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := sampleRecord(fmt.Sprintf("run-%d", i))
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Save(rec))
	}

	recs, err := s.List(3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "run-4", recs[0].ID)
	assert.Equal(t, "run-3", recs[1].ID)
	assert.Equal(t, "run-2", recs[2].ID)
	assert.Empty(t, recs[0].ReportJSON, "list omits the report payload")

	// Non-positive limit falls back to the default.
	all, err := s.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestReportStore_EmptyList(t *testing.T) {
	s := newTestStore(t)
	recs, err := s.List(10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReportStore_OnDiskFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")
	s, err := NewReportStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(sampleRecord("run-disk")))
	require.NoError(t, s.Close())

	reopened, err := NewReportStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	rec, err := reopened.Get("run-disk")
	require.NoError(t, err)
	assert.Equal(t, "run-disk", rec.ID)
}
