// Package model defines the data types shared across the ingestion,
// codec, correlation and rule-evaluation layers.
package model

import "time"

// PayloadType classifies the raw bytes carried by a SignalMessage.
type PayloadType string

// PayloadTypeRawBytes is currently the only payload type produced by adapters.
const PayloadTypeRawBytes PayloadType = "RAW_BYTES"

// SignalMessage is produced by transport adapters and appended to the log.
// Adapters never mutate a SignalMessage once constructed.
type SignalMessage struct {
	CaptureTimestampNs int64
	IngestTimestampNs  int64
	SourceID           string
	SourceSequence     uint64
	TransportMeta      string
	PayloadType        PayloadType
	RawPayload         []byte
}

// SpoolRecord is a log entry. It is created exclusively by the log on
// append and is immutable thereafter.
type SpoolRecord struct {
	Partition      int32
	Offset         int64
	AppendedAtNs   int64
	Message        SignalMessage
}

// ECGI is the 7-byte E-UTRAN Cell Global Identifier: a 3-byte PLMN identity
// followed by a 28-bit cell identity right-padded to 4 bytes.
type ECGI []byte

// PLMN returns the 3-byte PLMN identity component, or nil if ecgi is short.
func (e ECGI) PLMN() []byte {
	if len(e) < 3 {
		return nil
	}
	return e[:3]
}

// CellID returns the 4-byte cell identity component, or nil if ecgi is short.
func (e ECGI) CellID() []byte {
	if len(e) < 7 {
		return nil
	}
	return e[3:7]
}

// CanonicalMessage is the codec's output: a best-effort decode of a single
// S1AP PDU, never an error — a failed decode sets DecodeFailed and keeps
// whatever was already extracted.
type CanonicalMessage struct {
	SpoolPartition int32
	SpoolOffset    int64
	FrameNumber    *uint64

	ProcedureCode uint8
	MsgType       string

	IMSI          string
	TMSI          string
	IMEISV        string
	GUTI          string
	MMEUES1APID   *uint32
	ENBUES1APID   *uint32

	ECGI       ECGI
	TargetECGI ECGI
	PLMN       []byte
	CellID     []byte

	TEIDs []uint32

	RawBytes    []byte
	DecodedTree string
	DecodeFailed bool
}

// HasMMEUEID reports whether MMEUES1APID is present.
func (m *CanonicalMessage) HasMMEUEID() bool { return m.MMEUES1APID != nil }

// HasENBUEID reports whether ENBUES1APID is present.
func (m *CanonicalMessage) HasENBUEID() bool { return m.ENBUES1APID != nil }

// SubscriberRecord is the correlator's per-UE entity. Its internal ID never
// changes for the record's lifetime, even across identifier reassignment.
type SubscriberRecord struct {
	ID uint64

	IMSI        string
	TMSI        string
	IMEISV      string
	MMEUES1APID *uint32
	ENBUES1APID *uint32
	TEIDs       map[uint32]struct{}

	FirstSeenNs int64
	LastSeenNs  int64
}

// UEContext is the per-UE higher-level view maintained alongside the
// subscriber store.
type UEContext struct {
	Key string

	IMSI        string
	TMSI        string
	IMEISV      string
	MMEUES1APID *uint32
	ENBUES1APID *uint32

	CurrentECGI ECGI
	SourceECGI  ECGI
	TargetECGI  ECGI

	LastProcedure        string
	HandoverInProgress   bool
	HandoverStartNs      int64

	LastSeenNs int64
}

// EvidenceRef points at one log record that contributed to an emitted Event.
type EvidenceRef struct {
	Partition   int32
	Offset      int64
	FrameNumber *uint64
}

// Event is the rule engine's output: a semantic occurrence with a full
// evidence chain back to the log offsets that caused it.
type Event struct {
	ID             string
	Name           string
	TimestampNs    int64
	SubscriberKey  string
	Attributes     map[string]string
	Evidence       []EvidenceRef
	RulesetID      string
	RulesetVersion string
	Confidence     float64
}

// SingleMessageRule matches on one message's canonical type.
type SingleMessageRule struct {
	EventName  string
	MsgType    string
	Attributes map[string]string
	EventData  []FieldExtraction
}

// SequenceRule matches a pair of messages for the same subscriber within a
// time window.
type SequenceRule struct {
	EventName     string
	FirstMsgType  string
	SecondMsgType string
	TimeWindow    time.Duration
	Attributes    map[string]string
	EventData     []FieldExtraction
}

// FieldExtraction describes one attribute to materialize on an emitted
// Event: Target is the attribute key, Source is an expression of the form
// "message.<field>", "first_message.<field>" or "context.<field>".
type FieldExtraction struct {
	Target string
	Source string
}

// Ruleset is the rule engine's unit of configuration.
type Ruleset struct {
	ID            string
	Version       string
	SingleRules   []SingleMessageRule
	SequenceRules []SequenceRule
}

// SequenceState is an in-flight sequence-rule match awaiting its second
// message.
type SequenceState struct {
	SubscriberKey  string
	FirstMsgType   string
	FirstMessage   CanonicalMessage
	FirstSeenNs    int64
	RulesetID      string
	RulesetVersion string
}
