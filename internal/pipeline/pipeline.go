// Package pipeline wires the log reader, codec, subscriber/UE-context
// correlation and rule engine into a single processing loop: one
// CanonicalMessage decode and one correlator call per message, threaded
// into every downstream stage.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/lvonguyen/s1see/internal/codec"
	"github.com/lvonguyen/s1see/internal/model"
	"github.com/lvonguyen/s1see/internal/observability"
	"github.com/lvonguyen/s1see/internal/rules"
	"github.com/lvonguyen/s1see/internal/subscriber"
	"github.com/lvonguyen/s1see/internal/uecontext"
	"github.com/lvonguyen/s1see/internal/wal"
)

// ConsumerGroup identifies this pipeline's committed offsets in the WAL.
const ConsumerGroup = "pipeline"

// Processor drives records from a wal.Log through decode, correlation and
// rule evaluation.
type Processor struct {
	log        *wal.Log
	subs       *subscriber.Store
	contexts   *uecontext.Store
	rules      *rules.Engine
	telemetry  *observability.Telemetry
	partitions int32
	batchSize  int

	onEvents func(ctx context.Context, events []model.Event)
}

// New returns a Processor. telemetry may be nil, in which case spans and
// metrics are skipped.
func New(log *wal.Log, subs *subscriber.Store, contexts *uecontext.Store, engine *rules.Engine, telemetry *observability.Telemetry, partitions int32) *Processor {
	return &Processor{
		log:        log,
		subs:       subs,
		contexts:   contexts,
		rules:      engine,
		telemetry:  telemetry,
		partitions: partitions,
		batchSize:  256,
	}
}

// SetEventHandler installs a callback invoked with every non-empty batch of
// Events a ProcessRecord call produces, after rule evaluation and metrics
// recording. Only one handler is supported; a later call replaces the
// earlier one. Handler errors are the caller's responsibility to log.
func (p *Processor) SetEventHandler(h func(ctx context.Context, events []model.Event)) {
	p.onEvents = h
}

// Run polls every partition for new records starting from the pipeline's
// committed offset, processing and re-committing until ctx is cancelled.
func (p *Processor) Run(ctx context.Context, pollInterval time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		advanced := false
		for partition := int32(0); partition < p.partitions; partition++ {
			n, err := p.drainPartition(ctx, partition)
			if err != nil {
				if p.telemetry != nil {
					p.telemetry.RecordError(ctx, fmt.Errorf("pipeline: drain partition %d: %w", partition, err))
				}
				continue
			}
			if n > 0 {
				advanced = true
			}
		}

		if !advanced {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
		}
	}
}

// drainPartition reads and processes up to batchSize records from
// partition starting after the last committed offset, committing the new
// offset once the batch is fully processed.
func (p *Processor) drainPartition(ctx context.Context, partition int32) (int, error) {
	offset, err := p.log.LoadOffset(ConsumerGroup, partition)
	if err != nil {
		return 0, fmt.Errorf("load offset: %w", err)
	}

	records, err := p.log.Read(partition, offset, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	var last int64
	for _, rec := range records {
		p.ProcessRecord(ctx, rec)
		last = rec.Offset
	}

	if err := p.log.CommitOffset(ConsumerGroup, partition, last+1); err != nil {
		return 0, fmt.Errorf("commit offset: %w", err)
	}
	return len(records), nil
}

// ProcessRecord decodes rec, correlates it to a subscriber/UE context, and
// evaluates the rule engine against it, emitting any resulting Events
// through the processor's telemetry logger. Every stage gets its own span
// when tracing is enabled.
func (p *Processor) ProcessRecord(ctx context.Context, rec model.SpoolRecord) []model.Event {
	nowNs := time.Now().UnixNano()

	msg := p.decode(ctx, rec)

	subscriberKey, _ := p.correlate(ctx, msg, nowNs)

	events := p.evaluate(ctx, msg, subscriberKey)

	if p.telemetry != nil {
		if metrics := p.telemetry.Metrics(); metrics != nil {
			if msg.DecodeFailed {
				metrics.DecodeFailures.WithLabelValues("decode").Inc()
			} else {
				metrics.MessagesDecoded.WithLabelValues(msg.MsgType).Inc()
			}
			for _, ev := range events {
				metrics.EventsEmitted.WithLabelValues(ev.Name).Inc()
			}
		}
		for _, ev := range events {
			p.telemetry.Logger().Info("event emitted",
				zap.String("name", ev.Name),
				zap.String("subscriber_key", ev.SubscriberKey),
				zap.String("ruleset_id", ev.RulesetID),
			)
		}
	}

	if p.onEvents != nil && len(events) > 0 {
		p.onEvents(ctx, events)
	}

	return events
}

func (p *Processor) decode(ctx context.Context, rec model.SpoolRecord) model.CanonicalMessage {
	span := p.startSpan(ctx, "pipeline.decode")
	defer span.End()

	msg := codec.Decode(rec.Message.RawPayload)
	msg.SpoolPartition = rec.Partition
	msg.SpoolOffset = rec.Offset
	span.SetAttributes(attribute.String("msg_type", msg.MsgType), attribute.Bool("decode_failed", msg.DecodeFailed))
	return msg
}

func (p *Processor) correlate(ctx context.Context, msg model.CanonicalMessage, nowNs int64) (string, *model.UEContext) {
	span := p.startSpan(ctx, "pipeline.correlate")
	defer span.End()

	key, uctx := p.contexts.Process(p.subs, msg, nowNs)
	span.SetAttributes(attribute.String("subscriber_key", key))
	return key, uctx
}

func (p *Processor) evaluate(ctx context.Context, msg model.CanonicalMessage, subscriberKey string) []model.Event {
	span := p.startSpan(ctx, "pipeline.rules")
	defer span.End()

	events := p.rules.Process(msg, subscriberKey)
	span.SetAttributes(attribute.Int("events_emitted", len(events)))
	return events
}

// startSpan starts a span if tracing is configured, otherwise returns a
// no-op span so callers don't need a nil check.
func (p *Processor) startSpan(ctx context.Context, name string) trace.Span {
	if p.telemetry == nil {
		return trace.SpanFromContext(ctx)
	}
	_, span := p.telemetry.StartSpan(ctx, name)
	return span
}
