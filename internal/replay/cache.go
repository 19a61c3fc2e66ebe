// Package replay records live tool responses and replays them in later
// runs. Every tool call is keyed by a deterministic fingerprint of the
// tool name and arguments; recorded responses are shared across runs so
// an entire benchmark can re-execute without touching upstream services.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mobility-bench/mobench/internal/models"
	"github.com/mobility-bench/mobench/internal/tools"
)

// Mode selects how the cache treats calls with no recorded response.
type Mode string

const (
	// ModeLive invokes the upstream service on a miss and records the
	// response for future sandbox runs.
	ModeLive Mode = "live"

	// ModeSandbox never invokes upstream: a miss is a hard error. This
	// is the reproducible mode used for benchmark scoring.
	ModeSandbox Mode = "sandbox"
)

// Invoker performs a real tool call against upstream services. Only
// used in live mode.
type Invoker interface {
	Invoke(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error)
}

// Cache is a file-backed store of recorded tool responses, one JSON
// file per fingerprint.
type Cache struct {
	dir     string
	mode    Mode
	invoker Invoker

	mu      sync.Mutex
	entries map[string]*models.CacheEntry

	// inflight serializes live recording per fingerprint so concurrent
	// identical calls invoke upstream once.
	inflight map[string]*sync.Mutex
}

// Open loads the cache directory. In sandbox mode all entries are read
// up front; a missing directory is an empty cache in live mode and an
// error in sandbox mode.
func Open(dir string, mode Mode, invoker Invoker) (*Cache, error) {
	if mode != ModeLive && mode != ModeSandbox {
		return nil, fmt.Errorf("replay: unknown mode %q", mode)
	}
	if mode == ModeLive && invoker == nil {
		return nil, fmt.Errorf("replay: live mode requires an invoker")
	}

	c := &Cache{
		dir:      dir,
		mode:     mode,
		invoker:  invoker,
		entries:  make(map[string]*models.CacheEntry),
		inflight: make(map[string]*sync.Mutex),
	}

	if err := c.loadAll(); err != nil {
		if os.IsNotExist(err) && mode == ModeLive {
			return c, nil
		}
		return nil, err
	}
	return c, nil
}

func (c *Cache) loadAll() error {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}

	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.dir, f.Name()))
		if err != nil {
			return fmt.Errorf("replay: reading %s: %w", f.Name(), err)
		}
		var entry models.CacheEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("replay: parsing %s: %w", f.Name(), err)
		}
		c.entries[entry.Fingerprint] = &entry
	}
	return nil
}

// Mode returns the cache's operating mode.
func (c *Cache) Mode() Mode { return c.mode }

// Len returns the number of recorded entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// LookupOrRecord resolves a tool call to its recorded response. In
// sandbox mode a miss returns a *tools.InvocationError. In live mode a
// miss invokes upstream and records the response before returning it.
func (c *Cache) LookupOrRecord(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error) {
	fp, err := Fingerprint(tool, args)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if entry, ok := c.entries[fp]; ok {
		c.mu.Unlock()
		return entry.Response, nil
	}
	if c.mode == ModeSandbox {
		c.mu.Unlock()
		return nil, &tools.InvocationError{Tool: tool, Fingerprint: fp, Reason: "no recorded response in sandbox cache"}
	}
	lock := c.inflight[fp]
	if lock == nil {
		lock = &sync.Mutex{}
		c.inflight[fp] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	// A concurrent caller may have recorded the entry while we waited.
	c.mu.Lock()
	if entry, ok := c.entries[fp]; ok {
		c.mu.Unlock()
		return entry.Response, nil
	}
	c.mu.Unlock()

	response, err := c.invoker.Invoke(ctx, tool, args)
	if err != nil {
		return nil, &tools.InvocationError{Tool: tool, Fingerprint: fp, Reason: "upstream call failed", Err: err}
	}

	entry := &models.CacheEntry{
		Fingerprint: fp,
		Tool:        tool,
		Args:        args,
		Response:    response,
		RecordedAt:  time.Now().UTC(),
	}
	if err := c.writeEntry(entry); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[fp] = entry
	// Future callers hit the entry map, so the serialization lock has no
	// more work to do.
	delete(c.inflight, fp)
	c.mu.Unlock()

	return response, nil
}

// writeEntry persists an entry atomically: write to a temp file in the
// same directory, then rename into place.
func (c *Cache) writeEntry(entry *models.CacheEntry) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("replay: creating cache directory: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("replay: marshaling entry: %w", err)
	}

	final := filepath.Join(c.dir, entry.Fingerprint+".json")
	tmp, err := os.CreateTemp(c.dir, entry.Fingerprint+".*.tmp")
	if err != nil {
		return fmt.Errorf("replay: creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
		return fmt.Errorf("replay: writing entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return fmt.Errorf("replay: closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name()) //nolint:errcheck
		return fmt.Errorf("replay: committing entry: %w", err)
	}
	return nil
}

// Clear removes all recorded entries. It refuses to touch a directory
// containing anything other than cache files.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	files, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("replay: reading cache directory: %w", err)
	}
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			return fmt.Errorf("replay: %s is not a cache file, refusing to clear %s", f.Name(), c.dir)
		}
	}
	for _, f := range files {
		if err := os.Remove(filepath.Join(c.dir, f.Name())); err != nil {
			return fmt.Errorf("replay: removing %s: %w", f.Name(), err)
		}
	}
	c.entries = make(map[string]*models.CacheEntry)
	return nil
}
