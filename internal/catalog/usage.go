package catalog

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const usageFile = "usage.json"

type UsageRecord struct {
	LaunchCount    int       `json:"launch_count"`
	LastLaunched   time.Time `json:"last_launched"`
	RecentLaunches []int64   `json:"recent_launches"`
}

// UsageTracker remembers how often and how recently each plugin was started
// so the unfiltered list can put the regulars on top.
type UsageTracker struct {
	mu        sync.RWMutex
	records   map[string]*UsageRecord
	file      string
	maxRecent int
	halfLife  time.Duration

	now func() time.Time
}

func NewUsageTracker(dataDir string) (*UsageTracker, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage directory: %w", err)
	}

	t := &UsageTracker{
		records:   make(map[string]*UsageRecord),
		file:      filepath.Join(dataDir, usageFile),
		maxRecent: 10,
		halfLife:  7 * 24 * time.Hour,
		now:       time.Now,
	}
	if err := t.load(); err != nil {
		log.Warnf("[CATALOG] Failed to load usage data: %v", err)
	}
	return t, nil
}

func (t *UsageTracker) RecordLaunch(uri string) {
	if uri == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	rec, ok := t.records[uri]
	if !ok {
		rec = &UsageRecord{}
		t.records[uri] = rec
	}
	rec.LaunchCount++
	rec.LastLaunched = now
	rec.RecentLaunches = append(rec.RecentLaunches, now.Unix())
	if len(rec.RecentLaunches) > t.maxRecent {
		rec.RecentLaunches = rec.RecentLaunches[len(rec.RecentLaunches)-t.maxRecent:]
	}

	if err := t.save(); err != nil {
		log.Warnf("[CATALOG] Failed to save usage data: %v", err)
	}
}

// Score mixes launch count, recency and launch rate. Unknown plugins score 0.
func (t *UsageTracker) Score(uri string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[uri]
	if !ok {
		return 0
	}
	now := t.now()
	return float64(rec.LaunchCount)*0.4 + t.recency(rec.LastLaunched, now)*0.4 + trend(rec.RecentLaunches)*0.2
}

// recency halves every halfLife, starting at 100.
func (t *UsageTracker) recency(last, now time.Time) float64 {
	elapsed := now.Sub(last)
	if elapsed < 0 {
		elapsed = 0
	}
	return 100 * math.Pow(0.5, float64(elapsed)/float64(t.halfLife))
}

// trend is the launch rate over the recent launches, capped at ten a day
// and scaled to 0..100.
func trend(recent []int64) float64 {
	if len(recent) < 2 {
		return 0
	}
	span := recent[len(recent)-1] - recent[0]
	if span <= 0 {
		return 100
	}
	perDay := 24 * 3600 * float64(len(recent)-1) / float64(span)
	return math.Min(perDay, 10) * 10
}

func (t *UsageTracker) Record(uri string) *UsageRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[uri]
	if !ok {
		return nil
	}
	cp := *rec
	cp.RecentLaunches = append([]int64(nil), rec.RecentLaunches...)
	return &cp
}

func (t *UsageTracker) Forget(uri string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.records, uri)
	if err := t.save(); err != nil {
		log.Warnf("[CATALOG] Failed to save usage data: %v", err)
	}
}

func (t *UsageTracker) load() error {
	data, err := os.ReadFile(t.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var records map[string]*UsageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal usage data: %w", err)
	}
	if records == nil {
		records = make(map[string]*UsageRecord)
	}

	t.mu.Lock()
	t.records = records
	t.mu.Unlock()

	log.Debugf("[CATALOG] Loaded %d usage records", len(records))
	return nil
}

// save expects t.mu to be held.
func (t *UsageTracker) save() error {
	data, err := json.MarshalIndent(t.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal usage data: %w", err)
	}
	tmp := t.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write usage data: %w", err)
	}
	if err := os.Rename(tmp, t.file); err != nil {
		return fmt.Errorf("failed to replace usage data: %w", err)
	}
	return nil
}
