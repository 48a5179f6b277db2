// Package main provides ingest-replay: a reference driver that appends
// SignalMessages straight to a WAL, standing in for a transport adapter.
// It either replays a directory of captured raw payload files or
// synthesizes a handful of canned PDUs, round-robin, for quick
// demonstration against a running pipeline.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lvonguyen/s1see/internal/model"
	"github.com/lvonguyen/s1see/internal/sctp"
	"github.com/lvonguyen/s1see/internal/wal"
)

// samplePDUs stand in for real S1AP payloads when no capture directory is
// given. They don't decode to anything meaningful; they only exercise the
// ingest -> WAL -> decode path end to end.
var samplePDUs = [][]byte{
	{0x00, 0x01, 0x02, 0x03, 0x04},
	{0x01, 0x05, 0x06, 0x07, 0x08},
	{0x02, 0x09, 0x0a, 0x0b, 0x0c},
}

func main() {
	walDir := flag.String("wal-dir", "data/wal", "WAL base directory to append into")
	partitions := flag.Int("partitions", 4, "number of WAL partitions")
	sourceID := flag.String("source-id", "ingest-replay", "SourceID recorded on every appended message")
	captureDir := flag.String("dir", "", "directory of captured raw payload files to replay; if empty, synthesizes sample PDUs")
	count := flag.Int("count", 10, "number of synthetic messages to send when -dir is empty")
	interval := flag.Duration("interval", 100*time.Millisecond, "delay between appended messages")
	asFrames := flag.Bool("frames", false, "treat files under -dir as full Ethernet/IP/SCTP frames rather than bare S1AP PDUs")
	flag.Parse()

	cfg := wal.DefaultConfig(*walDir)
	cfg.Partitions = int32(*partitions)
	log, err := wal.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest-replay: open wal: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	payloads, err := loadPayloads(*captureDir, *count, *asFrames)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ingest-replay: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ingest-replay: sending %d messages to %s\n", len(payloads), *walDir)

	now := time.Now().UnixNano()
	for i, payload := range payloads {
		msg := model.SignalMessage{
			CaptureTimestampNs: now + int64(i)*int64(time.Millisecond),
			IngestTimestampNs:  now + int64(i)*int64(time.Millisecond),
			SourceID:           *sourceID,
			SourceSequence:     uint64(i),
			TransportMeta:      `{"replay":true}`,
			PayloadType:        model.PayloadTypeRawBytes,
			RawPayload:         payload,
		}

		partition, offset, err := log.Append(msg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ingest-replay: message %d failed: %v\n", i, err)
			continue
		}
		fmt.Printf("message %d acked: partition=%d offset=%d\n", i, partition, offset)

		if *interval > 0 && i < len(payloads)-1 {
			time.Sleep(*interval)
		}
	}

	fmt.Printf("replay complete. sent %d messages.\n", len(payloads))
}

// loadPayloads returns the raw S1AP payloads to send: files under dir (run
// through sctp.ExtractS1AP when asFrames is set) if dir is non-empty,
// otherwise count synthetic PDUs cycling through samplePDUs.
func loadPayloads(dir string, count int, asFrames bool) ([][]byte, error) {
	if dir == "" {
		payloads := make([][]byte, count)
		for i := range payloads {
			payloads[i] = samplePDUs[i%len(samplePDUs)]
		}
		return payloads, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read capture dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	payloads := make([][]byte, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if asFrames {
			pdu, ok := sctp.ExtractS1AP(data)
			if !ok {
				fmt.Fprintf(os.Stderr, "ingest-replay: %s does not carry an S1AP payload, skipping\n", name)
				continue
			}
			data = pdu
		}
		payloads = append(payloads, data)
	}
	return payloads, nil
}
