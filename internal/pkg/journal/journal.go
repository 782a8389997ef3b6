// Package journal is an append-only, segmented JSON-lines log with replay.
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	segmentPrefix = "segment-"
	segmentSuffix = ".log"
	filePerm      = 0644

	defaultSegmentSize = 16 << 20
)

// Record is one journal line.
type Record struct {
	Kind string          `json:"kind"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

// Journal is safe for concurrent use.
type Journal struct {
	dir            string
	maxSegmentSize int64
	maxTotalSize   int64
	logger         *slog.Logger

	mu             sync.Mutex
	currentSegment *os.File
	currentSize    int64
	currentIndex   uint64
	totalSize      int64
}

// Open opens or creates the journal in dir. maxTotalSize <= 0
// disables the disk cap.
func Open(dir string, maxSegmentSize, maxTotalSize int64, logger *slog.Logger) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory %s: %w", dir, err)
	}
	if maxSegmentSize <= 0 {
		maxSegmentSize = defaultSegmentSize
	}

	j := &Journal{
		dir:            dir,
		maxSegmentSize: maxSegmentSize,
		maxTotalSize:   maxTotalSize,
		logger:         logger.With("component", "ledger_journal"),
	}
	if err := j.openLatestSegment(); err != nil {
		return nil, err
	}
	return j, nil
}

// Append journals payload under kind and fsyncs the segment.
func (j *Journal) Append(kind string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", kind, err)
	}
	line, err := json.Marshal(Record{Kind: kind, At: time.Now().UTC(), Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal journal record: %w", err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.currentSegment == nil {
		return fmt.Errorf("journal is closed")
	}
	if j.maxTotalSize > 0 && j.totalSize+int64(len(line)) > j.maxTotalSize {
		return fmt.Errorf("journal max total size exceeded (%d > %d)", j.totalSize, j.maxTotalSize)
	}

	n, err := j.currentSegment.Write(line)
	if err != nil {
		return fmt.Errorf("failed to write to journal segment: %w", err)
	}
	j.currentSize += int64(n)
	j.totalSize += int64(n)
	if err := j.currentSegment.Sync(); err != nil {
		return fmt.Errorf("failed to sync journal segment: %w", err)
	}

	if j.currentSize >= j.maxSegmentSize {
		if err := j.rotate(); err != nil {
			j.logger.Error("Failed to rotate journal segment", "error", err)
		}
	}
	return nil
}

// Replay calls fn for every record in write order. A malformed line is
// logged and skipped; an error from fn stops the replay.
func (j *Journal) Replay(ctx context.Context, fn func(Record) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	segments, err := j.sortedSegments()
	if err != nil {
		return err
	}

	for _, segmentPath := range segments {
		if err := j.replaySegment(ctx, segmentPath, fn); err != nil {
			return err
		}
	}
	return nil
}

func (j *Journal) replaySegment(ctx context.Context, path string, fn func(Record) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open segment %s for replay: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			j.logger.Warn("Failed to unmarshal journal record, skipping", "error", err, "segment", filepath.Base(path))
			continue
		}
		if err := fn(rec); err != nil {
			return fmt.Errorf("replay of %s record failed: %w", rec.Kind, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error scanning segment %s: %w", path, err)
	}
	return nil
}

func (j *Journal) rotate() error {
	if j.currentSegment != nil {
		if err := j.currentSegment.Close(); err != nil {
			j.logger.Error("Failed to close journal segment before rotating", "error", err)
		}
		j.currentSegment = nil
	}

	j.currentIndex++
	path := filepath.Join(j.dir, segmentName(j.currentIndex))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to create new journal segment %s: %w", path, err)
	}

	j.currentSegment = f
	j.currentSize = 0
	j.logger.Debug("Rotated to new journal segment", "path", path)
	return nil
}

func (j *Journal) openLatestSegment() error {
	segments, err := j.sortedSegments()
	if err != nil {
		return err
	}
	total, err := j.calculateTotalSize(segments)
	if err != nil {
		return err
	}
	j.totalSize = total

	if len(segments) == 0 {
		return j.rotate()
	}

	latest := segments[len(segments)-1]
	idx, err := segmentIndex(filepath.Base(latest))
	if err != nil {
		return err
	}
	stat, err := os.Stat(latest)
	if err != nil {
		return fmt.Errorf("failed to stat latest segment %s: %w", latest, err)
	}
	f, err := os.OpenFile(latest, os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open latest segment %s: %w", latest, err)
	}

	j.currentSegment = f
	j.currentSize = stat.Size()
	j.currentIndex = idx

	if j.currentSize >= j.maxSegmentSize {
		return j.rotate()
	}
	return nil
}

func segmentName(idx uint64) string {
	return fmt.Sprintf("%s%020d%s", segmentPrefix, idx, segmentSuffix)
}

func segmentIndex(name string) (uint64, error) {
	raw := strings.TrimSuffix(strings.TrimPrefix(name, segmentPrefix), segmentSuffix)
	idx, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed journal segment name %q", name)
	}
	return idx, nil
}

func (j *Journal) sortedSegments() ([]string, error) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, segmentPrefix) && strings.HasSuffix(name, segmentSuffix) {
			segments = append(segments, filepath.Join(j.dir, name))
		}
	}
	sort.Strings(segments)
	return segments, nil
}

func (j *Journal) calculateTotalSize(segments []string) (int64, error) {
	var total int64
	for _, path := range segments {
		info, err := os.Stat(path)
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// Truncate removes every segment and starts a fresh one.
func (j *Journal) Truncate() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.currentSegment != nil {
		j.currentSegment.Close()
		j.currentSegment = nil
	}
	segments, err := j.sortedSegments()
	if err != nil {
		return err
	}
	for _, path := range segments {
		if err := os.Remove(path); err != nil {
			j.logger.Error("Failed to remove journal segment", "path", path, "error", err)
		}
	}
	j.currentIndex = 0
	j.logger.Info("Journal truncated")
	return j.openLatestSegment()
}

// SegmentCount returns the number of segment files on disk.
func (j *Journal) SegmentCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	segments, _ := j.sortedSegments()
	return len(segments)
}

// Close closes the current segment.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.currentSegment == nil {
		return nil
	}
	err := j.currentSegment.Close()
	j.currentSegment = nil
	return err
}
