// Package rules evaluates loaded Rulesets against canonical messages,
// emitting evidence-bearing Events for single-message matches and
// two-message sequences within a time window.
package rules

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lvonguyen/s1see/internal/model"
	"github.com/lvonguyen/s1see/internal/uecontext"
)

// maxSequenceAgeNs is the absolute cap a SequenceState may live for,
// regardless of the owning rule's own time window.
const maxSequenceAgeNs = 60_000_000_000 // 60s

// NowFunc returns the current time as nanoseconds since the epoch. Engine
// calls it whenever it needs the current time (sequence cleanup, window
// checks, new sequence states and event timestamps); tests can substitute
// a deterministic clock.
type NowFunc func() int64

// Engine holds loaded rulesets and in-flight sequence state.
type Engine struct {
	mu sync.Mutex

	now      NowFunc
	contexts *uecontext.Store

	rulesets  []model.Ruleset
	sequences map[string][]model.SequenceState
}

// New returns an Engine that resolves context.* extraction expressions
// against contexts and timestamps events using now.
func New(contexts *uecontext.Store, now NowFunc) *Engine {
	return &Engine{
		now:       now,
		contexts:  contexts,
		sequences: make(map[string][]model.SequenceState),
	}
}

// LoadRuleset appends r to the engine's active rulesets.
func (e *Engine) LoadRuleset(r model.Ruleset) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rulesets = append(e.rulesets, r)
}

// LoadedRulesetIDs returns the id:version of every currently loaded
// ruleset, in load order.
func (e *Engine) LoadedRulesetIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, len(e.rulesets))
	for i, rs := range e.rulesets {
		ids[i] = rs.ID + ":" + rs.Version
	}
	return ids
}

// Process evaluates msg (already correlated to subscriberKey by the
// caller, per the single-call-per-message invariant) against every loaded
// ruleset and returns the Events it produces, if any.
func (e *Engine) Process(msg model.CanonicalMessage, subscriberKey string) []model.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cleanupExpiredSequencesLocked()

	var events []model.Event
	for _, rs := range e.rulesets {
		events = append(events, e.checkSingleMessageRules(msg, rs, subscriberKey)...)
		events = append(events, e.checkSequenceRules(msg, rs, subscriberKey)...)
	}
	return events
}

func (e *Engine) checkSingleMessageRules(msg model.CanonicalMessage, rs model.Ruleset, subscriberKey string) []model.Event {
	var events []model.Event
	for _, rule := range rs.SingleRules {
		if msg.MsgType != rule.MsgType {
			continue
		}
		event := e.createEvent(rule.EventName, msg, rule.Attributes, rs.ID, rs.Version, subscriberKey)
		for _, extraction := range rule.EventData {
			if v := e.extractValue(extraction.Source, msg, nil, subscriberKey); v != "" {
				event.Attributes[extraction.Target] = v
			}
		}
		events = append(events, event)
	}
	return events
}

func (e *Engine) checkSequenceRules(msg model.CanonicalMessage, rs model.Ruleset, subscriberKey string) []model.Event {
	var events []model.Event
	sequences := e.sequences[subscriberKey]

	for _, rule := range rs.SequenceRules {
		switch msg.MsgType {
		case rule.FirstMsgType:
			sequences = append(sequences, model.SequenceState{
				SubscriberKey:  subscriberKey,
				FirstMsgType:   rule.FirstMsgType,
				FirstMessage:   msg,
				FirstSeenNs:    e.now(),
				RulesetID:      rs.ID,
				RulesetVersion: rs.Version,
			})
		case rule.SecondMsgType:
			kept := sequences[:0]
			for _, state := range sequences {
				if state.FirstMsgType != rule.FirstMsgType {
					kept = append(kept, state)
					continue
				}
				if e.now()-state.FirstSeenNs > rule.TimeWindow.Nanoseconds() {
					// Expired for this rule but not yet past the absolute
					// cap: leave it for cleanupExpiredSequencesLocked.
					kept = append(kept, state)
					continue
				}

				event := e.createEvent(rule.EventName, msg, rule.Attributes, rs.ID, rs.Version, subscriberKey)
				for _, extraction := range rule.EventData {
					if v := e.extractValue(extraction.Source, msg, &state.FirstMessage, subscriberKey); v != "" {
						event.Attributes[extraction.Target] = v
					}
				}
				event.Evidence = []model.EvidenceRef{
					evidenceFrom(state.FirstMessage),
					evidenceFrom(msg),
				}
				events = append(events, event)
				// entry consumed: not appended to kept
			}
			sequences = kept
		}
	}

	if len(sequences) == 0 {
		delete(e.sequences, subscriberKey)
	} else {
		e.sequences[subscriberKey] = sequences
	}
	return events
}

func (e *Engine) createEvent(name string, msg model.CanonicalMessage, attributes map[string]string, rulesetID, rulesetVersion, subscriberKey string) model.Event {
	event := model.Event{
		ID:             uuid.NewString(),
		Name:           name,
		TimestampNs:    e.now(),
		SubscriberKey:  subscriberKey,
		Attributes:     make(map[string]string, len(attributes)+2),
		RulesetID:      rulesetID,
		RulesetVersion: rulesetVersion,
		Confidence:     1.0,
		Evidence:       []model.EvidenceRef{evidenceFrom(msg)},
	}
	for k, v := range attributes {
		event.Attributes[k] = v
	}
	event.Attributes["msg_type"] = msg.MsgType
	if len(msg.ECGI) > 0 {
		event.Attributes["ecgi"] = hexString(msg.ECGI)
	}
	return event
}

func evidenceFrom(msg model.CanonicalMessage) model.EvidenceRef {
	return model.EvidenceRef{
		Partition:   msg.SpoolPartition,
		Offset:      msg.SpoolOffset,
		FrameNumber: msg.FrameNumber,
	}
}

// CleanupExpiredSequences removes SequenceStates older than the absolute
// 60-second cap, independent of their owning rule's own window.
func (e *Engine) CleanupExpiredSequences() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleanupExpiredSequencesLocked()
}

func (e *Engine) cleanupExpiredSequencesLocked() {
	now := e.now()
	for key, sequences := range e.sequences {
		kept := sequences[:0]
		for _, state := range sequences {
			if now-state.FirstSeenNs <= maxSequenceAgeNs {
				kept = append(kept, state)
			}
		}
		if len(kept) == 0 {
			delete(e.sequences, key)
		} else {
			e.sequences[key] = kept
		}
	}
}
