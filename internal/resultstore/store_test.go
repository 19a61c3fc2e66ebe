package resultstore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mobility-bench/mobench/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir())
}

func sampleManifest() *models.RunManifest {
	return models.NewRunManifest("run-1", "cases.yaml", []string{"gpt-x"}, []string{"nav-001", "wx-001"})
}

func sampleTrace(caseID string) *models.ExecutionTrace {
	return &models.ExecutionTrace{
		CaseID:      caseID,
		ModelID:     "gpt-x",
		FrameworkID: "native",
		Status:      models.StatusCompleted,
		FinalAnswer: models.Answer{Text: "好的"},
	}
}

func TestStore_ManifestRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.CreateRun(sampleManifest()))

	loaded, err := store.LoadManifest("run-1")
	require.NoError(t, err)
	require.Equal(t, "run-1", loaded.RunID)
	require.Len(t, loaded.Pairs, 2)

	t.Run("duplicate run rejected", func(t *testing.T) {
		err := store.CreateRun(sampleManifest())
		require.True(t, IsPersistenceError(err))
		require.ErrorContains(t, err, "already exists")
	})

	t.Run("missing run is ErrNotFound", func(t *testing.T) {
		_, err := store.LoadManifest("run-404")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_TraceRoundTrip(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateRun(sampleManifest()))

	rel, err := store.WriteTrace("run-1", sampleTrace("nav-001"))
	require.NoError(t, err)
	require.Equal(t, "traces/gpt-x/nav-001.json", rel)

	trace, err := store.LoadTrace("run-1", "gpt-x", "nav-001")
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, trace.Status)
	require.Equal(t, "好的", trace.FinalAnswer.Text)

	_, err = store.LoadTrace("run-1", "gpt-x", "nav-404")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LoadTracesSkipsUncommitted(t *testing.T) {
	store := newTestStore(t)
	manifest := sampleManifest()
	require.NoError(t, store.CreateRun(manifest))

	rel, err := store.WriteTrace("run-1", sampleTrace("nav-001"))
	require.NoError(t, err)

	pair := manifest.Pairs[models.PairKey("gpt-x", "nav-001")]
	pair.Status = models.PairCompleted
	pair.TracePath = rel
	manifest.Pairs[models.PairKey("gpt-x", "nav-001")] = pair
	require.NoError(t, store.SaveManifest(manifest))

	traces, err := store.LoadTraces("run-1")
	require.NoError(t, err)
	require.Len(t, traces, 1)
	require.Contains(t, traces, models.PairKey("gpt-x", "nav-001"))
}

func TestStore_InvalidIdentifiers(t *testing.T) {
	store := newTestStore(t)

	_, err := store.LoadManifest("../escape")
	require.True(t, IsPersistenceError(err))

	trace := sampleTrace("nav-001")
	trace.ModelID = "gpt/x"
	_, err = store.WriteTrace("run-1", trace)
	require.True(t, IsPersistenceError(err))
}

func TestStore_ListRuns(t *testing.T) {
	store := newTestStore(t)

	runs, err := store.ListRuns()
	require.NoError(t, err)
	require.Empty(t, runs)

	require.NoError(t, store.CreateRun(sampleManifest()))
	m2 := sampleManifest()
	m2.RunID = "run-0"
	require.NoError(t, store.CreateRun(m2))

	// A stray directory without a manifest is not a run.
	require.NoError(t, os.MkdirAll(filepath.Join(store.Root(), "scratch"), 0755))

	runs, err = store.ListRuns()
	require.NoError(t, err)
	require.Equal(t, []string{"run-0", "run-1"}, runs)
}

func TestStore_MetricTableRoundTrip(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.CreateRun(sampleManifest()))

	table := map[string]float64{"coverage": 1.0, "redundancy": 0.0}
	require.NoError(t, store.SaveMetricTable("run-1", table))

	var loaded map[string]float64
	require.NoError(t, store.LoadMetricTable("run-1", &loaded))
	require.Equal(t, table, loaded)
}

func TestStore_ArchiveRestoreRoundTrip(t *testing.T) {
	src := newTestStore(t)
	require.NoError(t, src.CreateRun(sampleManifest()))
	_, err := src.WriteTrace("run-1", sampleTrace("nav-001"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, src.ArchiveRun("run-1", &buf))

	dst := newTestStore(t)
	runID, err := dst.RestoreRun(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, "run-1", runID)

	trace, err := dst.LoadTrace("run-1", "gpt-x", "nav-001")
	require.NoError(t, err)
	require.Equal(t, "nav-001", trace.CaseID)

	t.Run("restore refuses overwrite", func(t *testing.T) {
		_, err := dst.RestoreRun(bytes.NewReader(buf.Bytes()))
		require.True(t, IsPersistenceError(err))
	})

	t.Run("archive missing run", func(t *testing.T) {
		var sink bytes.Buffer
		err := src.ArchiveRun("run-404", &sink)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPersistenceError_Unwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := &PersistenceError{Op: "write", Path: "/tmp/x", Err: inner}
	require.ErrorIs(t, err, inner)
	require.Contains(t, err.Error(), "disk full")
}
