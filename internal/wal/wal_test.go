package wal

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/lvonguyen/s1see/internal/model"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "wal"))
	cfg.Partitions = 2
	cfg.SegmentMaxBytes = 1 << 20
	l, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestAppendAndReadRoundTrip(t *testing.T) {
	l := newTestLog(t)

	msg := model.SignalMessage{
		SourceID:       "enb-1",
		SourceSequence: 1,
		PayloadType:    model.PayloadTypeRawBytes,
		RawPayload:     []byte{0x00, 0x01, 0x02},
	}

	partition, offset, err := l.Append(msg)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	recs, err := l.Read(partition, offset, 10)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Offset != offset {
		t.Errorf("offset mismatch: got %d want %d", recs[0].Offset, offset)
	}
	if string(recs[0].Message.RawPayload) != string(msg.RawPayload) {
		t.Errorf("payload mismatch: got %v want %v", recs[0].Message.RawPayload, msg.RawPayload)
	}
}

func TestOffsetsMonotonicWithinPartition(t *testing.T) {
	l := newTestLog(t)

	msg := model.SignalMessage{SourceID: "enb-1", SourceSequence: 1}
	var lastOffset int64 = -1
	var partition int32
	for i := 0; i < 50; i++ {
		p, off, err := l.Append(msg)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		partition = p
		if off <= lastOffset {
			t.Fatalf("offsets not strictly increasing: %d then %d", lastOffset, off)
		}
		lastOffset = off
	}

	hwm, err := l.HighWaterMark(partition)
	if err != nil {
		t.Fatalf("HighWaterMark: %v", err)
	}
	if hwm != lastOffset+1 {
		t.Errorf("high water mark = %d, want %d", hwm, lastOffset+1)
	}
}

func TestCommitAndLoadOffset(t *testing.T) {
	l := newTestLog(t)

	if off, err := l.LoadOffset("consumer-a", 0); err != nil || off != 0 {
		t.Fatalf("expected 0 offset for unseen group, got %d err=%v", off, err)
	}

	if err := l.CommitOffset("consumer-a", 0, 42); err != nil {
		t.Fatalf("CommitOffset: %v", err)
	}

	off, err := l.LoadOffset("consumer-a", 0)
	if err != nil {
		t.Fatalf("LoadOffset: %v", err)
	}
	if off != 42 {
		t.Errorf("loaded offset = %d, want 42", off)
	}
}

func TestSegmentRotation(t *testing.T) {
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "wal"))
	cfg.Partitions = 1
	cfg.SegmentMaxBytes = 256
	l, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer l.Close()

	msg := model.SignalMessage{
		SourceID:       "enb-1",
		SourceSequence: 1,
		RawPayload:     make([]byte, 64),
	}

	var offsets []int64
	for i := 0; i < 30; i++ {
		_, off, err := l.Append(msg)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		offsets = append(offsets, off)
	}

	bases, err := listSegmentBases(cfg.BaseDir, 0)
	if err != nil {
		t.Fatalf("listSegmentBases: %v", err)
	}
	if len(bases) < 2 {
		t.Fatalf("expected rotation to produce multiple segments, got %d", len(bases))
	}

	recs, err := l.Read(0, offsets[0], len(offsets))
	if err != nil {
		t.Fatalf("Read across segments: %v", err)
	}
	if len(recs) != len(offsets) {
		t.Fatalf("expected %d records across segments, got %d", len(offsets), len(recs))
	}
}

func TestReadToleratesTruncatedTrailingRecord(t *testing.T) {
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "wal"))
	cfg.Partitions = 1
	l, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	msg := model.SignalMessage{
		SourceID:       "enb-1",
		SourceSequence: 1,
		PayloadType:    model.PayloadTypeRawBytes,
		RawPayload:     []byte{0x0A, 0x0B, 0x0C},
	}
	partition, offset, err := l.Append(msg)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	bases, err := listSegmentBases(cfg.BaseDir, partition)
	if err != nil || len(bases) == 0 {
		t.Fatalf("listSegmentBases: %v (bases=%v)", err, bases)
	}
	base := bases[len(bases)-1]

	logPath := segmentPath(cfg.BaseDir, partition, base, ".log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open segment log for corruption: %v", err)
	}
	// A length prefix claiming a 100-byte payload, followed by only 4 bytes
	// of it: a crash mid-append leaving a truncated trailing record.
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], 100)
	if _, err := f.Write(lenBuf[:]); err != nil {
		t.Fatalf("write corrupt length prefix: %v", err)
	}
	if _, err := f.Write([]byte{0x01, 0x02, 0x03, 0x04}); err != nil {
		t.Fatalf("write truncated payload: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close corrupted segment log: %v", err)
	}

	l2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()

	recs, err := l2.Read(partition, offset, 10)
	if err != nil {
		t.Fatalf("Read returned an error for a truncated trailing record: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected the valid prefix (1 record), got %d", len(recs))
	}
	if string(recs[0].Message.RawPayload) != string(msg.RawPayload) {
		t.Errorf("payload mismatch: got %v want %v", recs[0].Message.RawPayload, msg.RawPayload)
	}
}

func TestReadToleratesUndecodableTrailingRecord(t *testing.T) {
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "wal"))
	cfg.Partitions = 1
	l, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	msg := model.SignalMessage{
		SourceID:       "enb-1",
		SourceSequence: 1,
		PayloadType:    model.PayloadTypeRawBytes,
		RawPayload:     []byte{0xAA, 0xBB},
	}
	partition, offset, err := l.Append(msg)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	bases, err := listSegmentBases(cfg.BaseDir, partition)
	if err != nil || len(bases) == 0 {
		t.Fatalf("listSegmentBases: %v (bases=%v)", err, bases)
	}
	base := bases[len(bases)-1]

	logPath := segmentPath(cfg.BaseDir, partition, base, ".log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open segment log for corruption: %v", err)
	}
	// A complete record with a correct length prefix, but a payload that
	// isn't a valid encoded SpoolRecord.
	garbage := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(garbage)))
	if _, err := f.Write(lenBuf[:]); err != nil {
		t.Fatalf("write length prefix: %v", err)
	}
	if _, err := f.Write(garbage); err != nil {
		t.Fatalf("write garbage payload: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close corrupted segment log: %v", err)
	}

	l2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()

	recs, err := l2.Read(partition, offset, 10)
	if err != nil {
		t.Fatalf("Read returned an error for an undecodable trailing record: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected the valid prefix (1 record), got %d", len(recs))
	}
}

func TestPartitionForIsStable(t *testing.T) {
	l := newTestLog(t)
	msg := model.SignalMessage{SourceID: "enb-42", SourceSequence: 7}

	first := l.PartitionFor(msg)
	for i := 0; i < 5; i++ {
		if got := l.PartitionFor(msg); got != first {
			t.Fatalf("PartitionFor not stable: got %d want %d", got, first)
		}
	}
}
