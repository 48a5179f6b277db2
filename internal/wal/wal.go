// Package wal implements the partitioned, append-only log that every
// SignalMessage passes through before decoding. Segment files hold
// length-prefixed msgpack-encoded SpoolRecords; a parallel .idx file maps
// offsets to byte positions so reads can seek without rescanning the log.
package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/lvonguyen/s1see/internal/model"
)

// Config configures a Log instance.
type Config struct {
	BaseDir           string
	Partitions        int32
	SegmentMaxBytes   int64
	WriteBufferBytes  int32
	FsyncInterval     time.Duration
	RetentionMaxBytes int64
	RetentionMaxAge   time.Duration
}

// DefaultConfig returns sensible defaults: a 64 KiB write buffer and a
// 100ms fsync interval.
func DefaultConfig(baseDir string) Config {
	return Config{
		BaseDir:           baseDir,
		Partitions:        4,
		SegmentMaxBytes:   100 * 1024 * 1024,
		WriteBufferBytes:  64 * 1024,
		FsyncInterval:     100 * time.Millisecond,
		RetentionMaxBytes: 1024 * 1024 * 1024,
		RetentionMaxAge:   7 * 24 * time.Hour,
	}
}

// Log is the partitioned append-only log.
type Log struct {
	cfg Config

	mu       sync.Mutex
	segments map[int32]*segment

	offsetMu sync.Mutex
}

// Open creates or opens a Log rooted at cfg.BaseDir.
func Open(cfg Config) (*Log, error) {
	if cfg.Partitions <= 0 {
		return nil, fmt.Errorf("wal: partitions must be positive, got %d", cfg.Partitions)
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: create base dir: %w", err)
	}
	for p := int32(0); p < cfg.Partitions; p++ {
		if err := os.MkdirAll(partitionDir(cfg.BaseDir, p), 0o755); err != nil {
			return nil, fmt.Errorf("wal: create partition dir: %w", err)
		}
	}
	return &Log{
		cfg:      cfg,
		segments: make(map[int32]*segment),
	}, nil
}

// Close flushes and closes every open segment.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, seg := range l.segments {
		if err := seg.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.segments = make(map[int32]*segment)
	return firstErr
}

// PartitionFor hashes a SignalMessage's source id and sequence number into
// one of cfg.Partitions buckets using xxhash, a stable non-cryptographic
// hash — any producer that sends the same (source, sequence) pair lands on
// the same partition across restarts.
func (l *Log) PartitionFor(msg model.SignalMessage) int32 {
	key := fmt.Sprintf("%s:%d", msg.SourceID, msg.SourceSequence)
	h := xxhash.Sum64String(key)
	return int32(h % uint64(l.cfg.Partitions))
}

func (l *Log) getOrCreateSegment(partition int32) (*segment, error) {
	if seg, ok := l.segments[partition]; ok {
		if seg.fileSize >= l.cfg.SegmentMaxBytes {
			if err := seg.close(); err != nil {
				return nil, fmt.Errorf("wal: rotate flush: %w", err)
			}
			delete(l.segments, partition)
		} else {
			return seg, nil
		}
	}

	bases, err := listSegmentBases(l.cfg.BaseDir, partition)
	if err != nil {
		return nil, fmt.Errorf("wal: list segments: %w", err)
	}
	baseOffset := int64(0)
	if len(bases) > 0 {
		last := bases[len(bases)-1]
		idx, err := readIndex(segmentPath(l.cfg.BaseDir, partition, last, ".idx"))
		if err != nil {
			return nil, fmt.Errorf("wal: read index: %w", err)
		}
		baseOffset = last + int64(len(idx))
		if baseOffset <= last {
			baseOffset = last + 1
		}
		fi, err := os.Stat(segmentPath(l.cfg.BaseDir, partition, last, ".log"))
		if err == nil && fi.Size() < l.cfg.SegmentMaxBytes {
			baseOffset = last
		}
	}

	seg, err := openSegment(l.cfg.BaseDir, partition, l.cfg.WriteBufferBytes, baseOffset)
	if err != nil {
		return nil, err
	}
	l.segments[partition] = seg
	return seg, nil
}

// Append assigns the next offset in msg's partition, encodes a SpoolRecord
// and writes it. It returns the partition and offset assigned.
func (l *Log) Append(msg model.SignalMessage) (int32, int64, error) {
	partition := l.PartitionFor(msg)

	l.mu.Lock()
	defer l.mu.Unlock()

	seg, err := l.getOrCreateSegment(partition)
	if err != nil {
		return 0, 0, err
	}

	record := model.SpoolRecord{
		Partition:    partition,
		Offset:       seg.currentOff,
		AppendedAtNs: time.Now().UnixNano(),
		Message:      msg,
	}

	payload, err := encodeRecord(record)
	if err != nil {
		return 0, 0, fmt.Errorf("wal: encode record: %w", err)
	}

	offset, err := seg.appendRecord(payload)
	if err != nil {
		return 0, 0, fmt.Errorf("wal: append: %w", err)
	}

	if time.Since(seg.lastFsync) >= l.cfg.FsyncInterval {
		if err := seg.sync(); err != nil {
			return partition, offset, fmt.Errorf("wal: fsync: %w", err)
		}
	} else if err := seg.flush(); err != nil {
		return partition, offset, fmt.Errorf("wal: flush: %w", err)
	}

	return partition, offset, nil
}

// Flush forces a buffer flush (not necessarily an fsync) across every open
// segment. Used by callers that want append() to return without having
// waited on the fsync interval but still want bytes visible to readers.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, seg := range l.segments {
		if err := seg.flush(); err != nil {
			return err
		}
	}
	return nil
}

// Sync fsyncs every open segment.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, seg := range l.segments {
		if err := seg.sync(); err != nil {
			return err
		}
	}
	return nil
}

// HighWaterMark returns the next offset to be assigned in a partition, i.e.
// one past the last committed record.
func (l *Log) HighWaterMark(partition int32) (int64, error) {
	l.mu.Lock()
	if seg, ok := l.segments[partition]; ok {
		hwm := seg.currentOff
		l.mu.Unlock()
		return hwm, nil
	}
	l.mu.Unlock()

	bases, err := listSegmentBases(l.cfg.BaseDir, partition)
	if err != nil {
		return 0, err
	}
	if len(bases) == 0 {
		return 0, nil
	}
	last := bases[len(bases)-1]
	idx, err := readIndex(segmentPath(l.cfg.BaseDir, partition, last, ".idx"))
	if err != nil {
		return 0, err
	}
	return last + int64(len(idx)), nil
}

// Read returns up to maxRecords SpoolRecords from partition starting at
// offset (inclusive). It flushes the active segment first so recently
// appended, buffered-but-unflushed records are visible.
func (l *Log) Read(partition int32, offset int64, maxRecords int) ([]model.SpoolRecord, error) {
	l.mu.Lock()
	if seg, ok := l.segments[partition]; ok {
		if err := seg.flush(); err != nil {
			l.mu.Unlock()
			return nil, fmt.Errorf("wal: flush before read: %w", err)
		}
	}
	l.mu.Unlock()

	bases, err := listSegmentBases(l.cfg.BaseDir, partition)
	if err != nil {
		return nil, fmt.Errorf("wal: list segments: %w", err)
	}

	var out []model.SpoolRecord
	for _, base := range bases {
		if len(out) >= maxRecords {
			break
		}
		recs, err := readSegmentFrom(l.cfg.BaseDir, partition, base, offset, maxRecords-len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// readSegmentFrom reads records with offset >= startOffset from one segment
// file, using its .idx file to seek directly to the first qualifying record.
func readSegmentFrom(baseDir string, partition int32, base, startOffset int64, max int) ([]model.SpoolRecord, error) {
	idxPath := segmentPath(baseDir, partition, base, ".idx")
	entries, err := readIndex(idxPath)
	if err != nil {
		return nil, fmt.Errorf("wal: read index: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	if startOffset > entries[len(entries)-1].offset {
		return nil, nil
	}

	startIdx := sort.Search(len(entries), func(i int) bool { return entries[i].offset >= startOffset })
	if startIdx >= len(entries) {
		return nil, nil
	}

	logPath := segmentPath(baseDir, partition, base, ".log")
	f, err := os.Open(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wal: open segment log: %w", err)
	}
	defer f.Close()

	if _, err := f.Seek(entries[startIdx].position, io.SeekStart); err != nil {
		return nil, fmt.Errorf("wal: seek: %w", err)
	}

	r := bufio.NewReader(f)
	var out []model.SpoolRecord
	for len(out) < max {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, fmt.Errorf("wal: read length prefix: %w", err)
		}
		length := binary.LittleEndian.Uint32(lenBuf[:])
		payload := make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			// A truncated trailing record (e.g. a crash mid-append) is not
			// an error: stop at the last valid record, same as a
			// truncated length prefix above.
			break
		}
		record, err := decodeRecord(payload)
		if err != nil {
			// An undecodable trailing record is likewise treated as the
			// end of valid data rather than failing the whole read.
			break
		}
		out = append(out, record)
	}
	return out, nil
}

// PruneOldSegments deletes segments older than RetentionMaxAge or beyond
// RetentionMaxBytes, keeping at least the active segment for each
// partition. Consumer-group offsets are not consulted: a segment is pruned
// whether or not every group has read it.
func (l *Log) PruneOldSegments() (int, error) {
	pruned := 0
	for p := int32(0); p < l.cfg.Partitions; p++ {
		n, err := l.pruneOldSegmentsForPartition(p)
		if err != nil {
			return pruned, err
		}
		pruned += n
	}
	return pruned, nil
}

func (l *Log) pruneOldSegmentsForPartition(partition int32) (int, error) {
	bases, err := listSegmentBases(l.cfg.BaseDir, partition)
	if err != nil || len(bases) <= 1 {
		return 0, err
	}

	type segStat struct {
		base    int64
		size    int64
		modTime time.Time
	}
	stats := make([]segStat, 0, len(bases))
	var total int64
	for _, base := range bases {
		fi, err := os.Stat(segmentPath(l.cfg.BaseDir, partition, base, ".log"))
		if err != nil {
			continue
		}
		stats = append(stats, segStat{base: base, size: fi.Size(), modTime: fi.ModTime()})
		total += fi.Size()
	}

	pruned := 0
	now := time.Now()
	// never prune the most recent segment; it may still be active
	for i := 0; i < len(stats)-1; i++ {
		s := stats[i]
		tooOld := l.cfg.RetentionMaxAge > 0 && now.Sub(s.modTime) > l.cfg.RetentionMaxAge
		tooBig := l.cfg.RetentionMaxBytes > 0 && total > l.cfg.RetentionMaxBytes
		if !tooOld && !tooBig {
			continue
		}
		if err := os.Remove(segmentPath(l.cfg.BaseDir, partition, s.base, ".log")); err != nil && !os.IsNotExist(err) {
			return pruned, fmt.Errorf("wal: remove segment log: %w", err)
		}
		if err := os.Remove(segmentPath(l.cfg.BaseDir, partition, s.base, ".idx")); err != nil && !os.IsNotExist(err) {
			return pruned, fmt.Errorf("wal: remove segment index: %w", err)
		}
		total -= s.size
		pruned++
	}
	return pruned, nil
}

// offsetFilePath returns the path of a consumer group's committed-offset
// file for a partition.
func (l *Log) offsetFilePath(group string, partition int32) string {
	safe := strings.ReplaceAll(group, string(filepath.Separator), "_")
	return filepath.Join(partitionDir(l.cfg.BaseDir, partition), fmt.Sprintf("%s.offset", safe))
}

// CommitOffset durably records the next offset a consumer group should
// resume reading from.
func (l *Log) CommitOffset(group string, partition int32, offset int64) error {
	l.offsetMu.Lock()
	defer l.offsetMu.Unlock()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(offset))

	path := l.offsetFilePath(group, partition)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf[:], 0o644); err != nil {
		return fmt.Errorf("wal: write offset file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("wal: rename offset file: %w", err)
	}
	return nil
}

// LoadOffset returns the last committed offset for a consumer group and
// partition, or 0 if none has been committed.
func (l *Log) LoadOffset(group string, partition int32) (int64, error) {
	l.offsetMu.Lock()
	defer l.offsetMu.Unlock()

	data, err := os.ReadFile(l.offsetFilePath(group, partition))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("wal: read offset file: %w", err)
	}
	if len(data) < 8 {
		return 0, fmt.Errorf("wal: truncated offset file")
	}
	return int64(binary.LittleEndian.Uint64(data)), nil
}

func encodeRecord(record model.SpoolRecord) ([]byte, error) {
	return msgpack.Marshal(&record)
}

func decodeRecord(payload []byte) (model.SpoolRecord, error) {
	var record model.SpoolRecord
	if err := msgpack.Unmarshal(payload, &record); err != nil {
		return model.SpoolRecord{}, err
	}
	return record, nil
}
