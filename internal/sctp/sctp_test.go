package sctp

import (
	"bytes"
	"testing"
)

// buildFrame constructs a minimal Ethernet+IPv4+SCTP frame with a single
// DATA chunk carrying payload as its user data.
func buildFrame(ppid uint32, payload []byte) []byte {
	frame := make([]byte, 14)
	frame[12] = 0x08
	frame[13] = 0x00 // IPv4

	ipHeader := make([]byte, 20)
	ipHeader[0] = 0x45 // version 4, IHL 5
	ipHeader[9] = ipProtoSCTP

	sctpCommon := make([]byte, 12)

	chunkLen := 16 + len(payload)
	chunk := make([]byte, chunkLen)
	chunk[0] = sctpChunkTypeData
	chunk[2] = byte(chunkLen >> 8)
	chunk[3] = byte(chunkLen)
	chunk[12] = byte(ppid >> 24)
	chunk[13] = byte(ppid >> 16)
	chunk[14] = byte(ppid >> 8)
	chunk[15] = byte(ppid)
	copy(chunk[16:], payload)

	var buf bytes.Buffer
	buf.Write(frame)
	buf.Write(ipHeader)
	buf.Write(sctpCommon)
	buf.Write(chunk)
	return buf.Bytes()
}

func TestExtractS1APFindsDataChunk(t *testing.T) {
	payload := []byte{0x00, 0x0c, 0x00, 0x01}
	frame := buildFrame(s1apPayloadProtocolID, payload)

	got, ok := ExtractS1AP(frame)
	if !ok {
		t.Fatal("expected to extract S1AP payload")
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %x, want %x", got, payload)
	}
}

func TestExtractS1APRejectsWrongPPID(t *testing.T) {
	frame := buildFrame(99, []byte{0x01, 0x02})
	if _, ok := ExtractS1AP(frame); ok {
		t.Fatal("expected no extraction for non-S1AP PPID")
	}
}

func TestExtractS1APTooShort(t *testing.T) {
	if _, ok := ExtractS1AP([]byte{0x01, 0x02}); ok {
		t.Fatal("expected no extraction for truncated frame")
	}
}

func TestPayloadOrRawFallsBackToInput(t *testing.T) {
	raw := []byte{0x00, 0x0c, 0x00, 0x01}
	if got := PayloadOrRaw(raw); !bytes.Equal(got, raw) {
		t.Errorf("got %x, want raw input unchanged", got)
	}
}
