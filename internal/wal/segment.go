package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const indexEntrySize = 16 // offset (int64) + position (int64), little-endian

type segment struct {
	partition   int32
	baseOffset  int64
	logPath     string
	idxPath     string
	logFile     *os.File
	idxFile     *os.File
	logWriter   *bufio.Writer
	idxWriter   *bufio.Writer
	currentOff  int64
	fileSize    int64
	lastFsync   time.Time
}

func segmentPath(baseDir string, partition int32, baseOffset int64, suffix string) string {
	dir := filepath.Join(baseDir, fmt.Sprintf("partition_%d", partition))
	return filepath.Join(dir, fmt.Sprintf("segment_%d%s", baseOffset, suffix))
}

func partitionDir(baseDir string, partition int32) string {
	return filepath.Join(baseDir, fmt.Sprintf("partition_%d", partition))
}

// listSegmentBases returns the sorted base offsets of segment files present
// for a partition.
func listSegmentBases(baseDir string, partition int32) ([]int64, error) {
	dir := partitionDir(baseDir, partition)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var bases []int64
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".log") {
			continue
		}
		stem := strings.TrimSuffix(name, ".log")
		if !strings.HasPrefix(stem, "segment_") {
			continue
		}
		n, err := strconv.ParseInt(strings.TrimPrefix(stem, "segment_"), 10, 64)
		if err != nil {
			continue
		}
		bases = append(bases, n)
	}
	sort.Slice(bases, func(i, j int) bool { return bases[i] < bases[j] })
	return bases, nil
}

func openSegment(baseDir string, partition, bufSize int32, baseOffset int64) (*segment, error) {
	if err := os.MkdirAll(partitionDir(baseDir, partition), 0o755); err != nil {
		return nil, fmt.Errorf("create partition dir: %w", err)
	}

	seg := &segment{
		partition:  partition,
		baseOffset: baseOffset,
		logPath:    segmentPath(baseDir, partition, baseOffset, ".log"),
		idxPath:    segmentPath(baseDir, partition, baseOffset, ".idx"),
		currentOff: baseOffset,
		lastFsync:  time.Now(),
	}

	if fi, err := os.Stat(seg.logPath); err == nil {
		seg.fileSize = fi.Size()
	}
	if fi, err := os.Stat(seg.idxPath); err == nil {
		seg.currentOff = baseOffset + fi.Size()/indexEntrySize
	}

	logFile, err := os.OpenFile(seg.logPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open segment log: %w", err)
	}
	idxFile, err := os.OpenFile(seg.idxPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("open segment index: %w", err)
	}

	seg.logFile = logFile
	seg.idxFile = idxFile
	seg.logWriter = bufio.NewWriterSize(logFile, int(bufSize))
	seg.idxWriter = bufio.NewWriterSize(idxFile, int(bufSize))

	return seg, nil
}

// appendRecord writes a length-prefixed payload and its index entry,
// returning the offset assigned to the record.
func (s *segment) appendRecord(payload []byte) (int64, error) {
	offset := s.currentOff
	position := s.fileSize

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := s.logWriter.Write(lenBuf[:]); err != nil {
		return 0, err
	}
	if _, err := s.logWriter.Write(payload); err != nil {
		return 0, err
	}

	var idxBuf [indexEntrySize]byte
	binary.LittleEndian.PutUint64(idxBuf[0:8], uint64(offset))
	binary.LittleEndian.PutUint64(idxBuf[8:16], uint64(position))
	if _, err := s.idxWriter.Write(idxBuf[:]); err != nil {
		return 0, err
	}

	s.fileSize += int64(4 + len(payload))
	s.currentOff++
	return offset, nil
}

func (s *segment) flush() error {
	if err := s.logWriter.Flush(); err != nil {
		return err
	}
	return s.idxWriter.Flush()
}

func (s *segment) sync() error {
	if err := s.flush(); err != nil {
		return err
	}
	if err := s.logFile.Sync(); err != nil {
		return err
	}
	s.lastFsync = time.Now()
	return s.idxFile.Sync()
}

func (s *segment) close() error {
	if err := s.sync(); err != nil {
		s.logFile.Close()
		s.idxFile.Close()
		return err
	}
	if err := s.logFile.Close(); err != nil {
		s.idxFile.Close()
		return err
	}
	return s.idxFile.Close()
}

// readIndex reads every (offset, position) pair recorded in this segment's
// index file.
func readIndex(idxPath string) ([]indexEntry, error) {
	data, err := os.ReadFile(idxPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	n := len(data) / indexEntrySize
	entries := make([]indexEntry, n)
	for i := 0; i < n; i++ {
		b := data[i*indexEntrySize:]
		entries[i] = indexEntry{
			offset:   int64(binary.LittleEndian.Uint64(b[0:8])),
			position: int64(binary.LittleEndian.Uint64(b[8:16])),
		}
	}
	return entries, nil
}

type indexEntry struct {
	offset   int64
	position int64
}
