// Package resultstore owns the on-disk layout of benchmark results:
//
//	<root>/<run-id>/manifest.json
//	<root>/<run-id>/traces/<model-id>/<case-id>.json
//	<root>/<run-id>/metrics/table.json
//
// All writes are atomic (temp file then rename) so a crashed run never
// leaves a partially written trace or manifest behind.
package resultstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mobility-bench/mobench/internal/models"
)

// ErrNotFound reports a run, trace, or metric table that does not exist.
var ErrNotFound = errors.New("not found")

// PersistenceError reports a failed store operation. Runner retries
// classify these separately from agent failures.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("resultstore: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistenceError reports whether err wraps a PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// Store is a file-backed result store rooted at one directory.
type Store struct {
	root string
}

// New creates a store over the given root directory.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.root, runID)
}

func (s *Store) manifestPath(runID string) string {
	return filepath.Join(s.runDir(runID), "manifest.json")
}

func (s *Store) tracePath(runID, modelID, caseID string) string {
	return filepath.Join(s.runDir(runID), "traces", modelID, caseID+".json")
}

func (s *Store) tablePath(runID string) string {
	return filepath.Join(s.runDir(runID), "metrics", "table.json")
}

// checkID rejects identifiers that would escape the store layout.
func checkID(kind, id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return &PersistenceError{Op: "validate", Path: id, Err: fmt.Errorf("invalid %s identifier", kind)}
	}
	return nil
}

// CreateRun initializes a run directory and writes the initial
// manifest. It fails if the run already exists.
func (s *Store) CreateRun(manifest *models.RunManifest) error {
	if err := checkID("run", manifest.RunID); err != nil {
		return err
	}
	dir := s.runDir(manifest.RunID)
	if _, err := os.Stat(dir); err == nil {
		return &PersistenceError{Op: "create run", Path: dir, Err: errors.New("run already exists")}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &PersistenceError{Op: "create run", Path: dir, Err: err}
	}
	return s.SaveManifest(manifest)
}

// SaveManifest writes the manifest atomically.
func (s *Store) SaveManifest(manifest *models.RunManifest) error {
	if err := checkID("run", manifest.RunID); err != nil {
		return err
	}
	return s.writeJSON(s.manifestPath(manifest.RunID), manifest)
}

// LoadManifest reads a run's manifest. A missing run yields ErrNotFound.
func (s *Store) LoadManifest(runID string) (*models.RunManifest, error) {
	if err := checkID("run", runID); err != nil {
		return nil, err
	}
	var manifest models.RunManifest
	if err := s.readJSON(s.manifestPath(runID), &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

// WriteTrace persists one execution trace and returns its path relative
// to the run directory. The trace is written before the manifest marks
// the pair complete, so a committed pair always has its trace on disk.
func (s *Store) WriteTrace(runID string, trace *models.ExecutionTrace) (string, error) {
	if err := checkID("run", runID); err != nil {
		return "", err
	}
	if err := checkID("model", trace.ModelID); err != nil {
		return "", err
	}
	if err := checkID("case", trace.CaseID); err != nil {
		return "", err
	}

	path := s.tracePath(runID, trace.ModelID, trace.CaseID)
	if err := s.writeJSON(path, trace); err != nil {
		return "", err
	}
	rel, err := filepath.Rel(s.runDir(runID), path)
	if err != nil {
		return "", &PersistenceError{Op: "relativize", Path: path, Err: err}
	}
	return filepath.ToSlash(rel), nil
}

// LoadTrace reads one execution trace.
func (s *Store) LoadTrace(runID, modelID, caseID string) (*models.ExecutionTrace, error) {
	var trace models.ExecutionTrace
	if err := s.readJSON(s.tracePath(runID, modelID, caseID), &trace); err != nil {
		return nil, err
	}
	return &trace, nil
}

// LoadTraces reads every persisted trace of the run, keyed by pair key.
// Failed pairs whose final attempt was still persisted are included so
// scoring sees them.
func (s *Store) LoadTraces(runID string) (map[string]*models.ExecutionTrace, error) {
	manifest, err := s.LoadManifest(runID)
	if err != nil {
		return nil, err
	}

	traces := make(map[string]*models.ExecutionTrace)
	for key, pair := range manifest.Pairs {
		if pair.TracePath == "" {
			continue
		}
		trace, err := s.LoadTrace(runID, pair.ModelID, pair.CaseID)
		if err != nil {
			return nil, err
		}
		traces[key] = trace
	}
	return traces, nil
}

// ListRuns returns all run IDs under the root, sorted.
func (s *Store) ListRuns() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &PersistenceError{Op: "list runs", Path: s.root, Err: err}
	}

	var runs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(s.manifestPath(e.Name())); err == nil {
			runs = append(runs, e.Name())
		}
	}
	sort.Strings(runs)
	return runs, nil
}

// SaveMetricTable persists the aggregated metric table for a run.
func (s *Store) SaveMetricTable(runID string, table any) error {
	if err := checkID("run", runID); err != nil {
		return err
	}
	return s.writeJSON(s.tablePath(runID), table)
}

// LoadMetricTable reads the aggregated metric table into out.
func (s *Store) LoadMetricTable(runID string, out any) error {
	if err := checkID("run", runID); err != nil {
		return err
	}
	return s.readJSON(s.tablePath(runID), out)
}

func (s *Store) readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PersistenceError{Op: "read", Path: path, Err: ErrNotFound}
		}
		return &PersistenceError{Op: "read", Path: path, Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &PersistenceError{Op: "parse", Path: path, Err: err}
	}
	return nil
}

// writeJSON writes atomically: marshal, write a temp file in the target
// directory, then rename into place.
func (s *Store) writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &PersistenceError{Op: "mkdir", Path: dir, Err: err}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "marshal", Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return &PersistenceError{Op: "create temp", Path: dir, Err: err}
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return &PersistenceError{Op: "write", Path: tmp.Name(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return &PersistenceError{Op: "close", Path: tmp.Name(), Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return &PersistenceError{Op: "commit", Path: path, Err: err}
	}
	return nil
}
