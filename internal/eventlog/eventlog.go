// Package eventlog implements the world event log (component C7): an
// append-only, partition-scoped event record store with an idempotency
// index, a monotonic status lifecycle, and a redacted dead-letter sink.
package eventlog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/piquet-h/worldengine/internal/worlderr"
)

// Status is a WorldEventRecord's position in its processing lifecycle.
type Status string

const (
	StatusPending      Status = "pending"
	StatusProcessed    Status = "processed"
	StatusFailed       Status = "failed"
	StatusDeadLettered Status = "dead_lettered"
)

// ActorKind identifies who or what caused an event.
type ActorKind string

const (
	ActorPlayer ActorKind = "player"
	ActorSystem ActorKind = "system"
	ActorWorker ActorKind = "worker"
)

// WorldEventRecord is one append-only event envelope. {ID, ScopeKey,
// OccurredUtc, IdempotencyKey, Payload} are immutable after Create; only
// Status, ProcessedUtc, ProcessingMetadata, and Version change thereafter.
type WorldEventRecord struct {
	ID                 string
	ScopeKey           string
	EventType          string
	Status             Status
	OccurredUtc        time.Time
	IngestedUtc        time.Time
	ProcessedUtc       *time.Time
	ActorKind          ActorKind
	ActorID            string
	CorrelationID      string
	CausationID        string
	IdempotencyKey     string
	Payload            map[string]any
	ProcessingMetadata map[string]string
	Version            int
}

// DeadLetterRecord is a redacted snapshot of a terminally-failed envelope.
type DeadLetterRecord struct {
	ID              string
	OriginalEventID string
	ScopeKey        string
	EventType       string
	Payload         map[string]any
	FailureReason   string
	CorrelationID   string
	DeadLetteredUtc time.Time
}

// QueryOptions filters a single-partition scan.
type QueryOptions struct {
	Limit  int
	Status *Status
	Since  *time.Time
	Until  *time.Time
}

// LocationScope, PlayerScope, and GlobalScope build the three recognized
// scopeKey forms (§3 WorldEventRecord).
func LocationScope(locationID string) string { return "loc:" + locationID }
func PlayerScope(playerID string) string      { return "player:" + playerID }
func GlobalScope(category string) string      { return "global:" + category }

// Store is the world event log's operation contract.
type Store interface {
	// Create upserts by (scopeKey, id). A second write of the same id is a
	// no-op (created=false, original record returned) to tolerate
	// at-least-once queue delivery. A distinct id reusing an already-indexed
	// idempotencyKey is rejected with ConflictError, unless the record that
	// owns the key is dead_lettered, in which case the key is reassigned to
	// the new record.
	Create(ctx context.Context, rec WorldEventRecord) (out WorldEventRecord, created bool, err error)

	// Get returns a single record by its partition key, or nil if absent.
	Get(ctx context.Context, scopeKey, id string) (*WorldEventRecord, error)

	// GetByIdempotencyKey is a cross-partition lookup; returns nil if no
	// record carries this key.
	GetByIdempotencyKey(ctx context.Context, key string) (*WorldEventRecord, error)

	// UpdateStatus advances a record through the status state machine.
	// Invalid transitions are rejected with InvalidTransitionError.
	UpdateStatus(ctx context.Context, scopeKey, id string, newStatus Status, processedUtc *time.Time, meta map[string]string) (WorldEventRecord, error)

	// QueryByScope is a single-partition, occurredUtc-ordered scan.
	QueryByScope(ctx context.Context, scopeKey string, opts QueryOptions) ([]WorldEventRecord, error)

	// GetRecent is a cross-partition, admin-only scan.
	GetRecent(ctx context.Context, limit int) ([]WorldEventRecord, error)

	// WriteDeadLetter appends a dead-letter record. Per §4.7, callers must
	// never let a WriteDeadLetter failure interrupt the main pipeline; use
	// DeadLetterOnFailure rather than calling this directly from request
	// paths.
	WriteDeadLetter(ctx context.Context, rec DeadLetterRecord) error
}

// validTransitions enumerates the only forward edges of the status state
// machine (§4.7). Any pair absent here, including every transition out of
// a terminal state, is rejected.
var validTransitions = map[Status]map[Status]bool{
	StatusPending: {StatusProcessed: true, StatusFailed: true},
	StatusFailed:  {StatusPending: true, StatusDeadLettered: true},
}

func validateTransition(from, to Status) error {
	if allowed, ok := validTransitions[from]; ok && allowed[to] {
		return nil
	}
	return &worlderr.InvalidTransitionError{Resource: "WorldEventRecord.status", From: string(from), To: string(to)}
}

const defaultQueryLimit = 100

func (o QueryOptions) limitOrDefault() int {
	if o.Limit <= 0 {
		return defaultQueryLimit
	}
	return o.Limit
}

func (o QueryOptions) matches(r WorldEventRecord) bool {
	if o.Status != nil && r.Status != *o.Status {
		return false
	}
	if o.Since != nil && r.OccurredUtc.Before(*o.Since) {
		return false
	}
	if o.Until != nil && r.OccurredUtc.After(*o.Until) {
		return false
	}
	return true
}

// defaultRedactFields names the payload keys stripped before a dead-letter
// write: the player-identifying fields this domain carries rather than
// credential-shaped ones.
var defaultRedactFields = []string{"playerId", "playerGuid", "externalId", "email", "name"}

const maxDeadLetterBlobLen = 500

// RedactPayload strips player-identifying fields and truncates large blobs
// from an event payload before it is written to the dead-letter store,
// recursing into nested maps and slices.
func RedactPayload(payload map[string]any, redactFields []string) map[string]any {
	if payload == nil {
		return nil
	}
	if redactFields == nil {
		redactFields = defaultRedactFields
	}
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = redactValue(k, v, redactFields)
	}
	return out
}

func redactValue(key string, value any, redactFields []string) any {
	for _, f := range redactFields {
		if key == f {
			return "[REDACTED]"
		}
	}
	switch v := value.(type) {
	case string:
		if len(v) > maxDeadLetterBlobLen {
			return fmt.Sprintf("[TRUNCATED %d bytes]", len(v))
		}
		return v
	case map[string]any:
		return RedactPayload(v, redactFields)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = redactValue("", item, redactFields)
		}
		return out
	default:
		return v
	}
}

// BuildDeadLetterRecord derives a redacted dead-letter snapshot from a
// failed envelope, preserving correlation and failure reason per §4.7.
func BuildDeadLetterRecord(id string, rec WorldEventRecord, reason string, redactFields []string) DeadLetterRecord {
	return DeadLetterRecord{
		ID:              id,
		OriginalEventID: rec.ID,
		ScopeKey:        rec.ScopeKey,
		EventType:       rec.EventType,
		Payload:         RedactPayload(rec.Payload, redactFields),
		FailureReason:   reason,
		CorrelationID:   rec.CorrelationID,
		DeadLetteredUtc: time.Now().UTC(),
	}
}

// DeadLetterOnFailure transitions rec to dead_lettered and writes its
// redacted snapshot to the dead-letter store. Per §4.7, dead-letter writes
// never throw out of the pipeline: any error here is logged and swallowed,
// not returned.
func DeadLetterOnFailure(ctx context.Context, s Store, logger *zap.Logger, rec WorldEventRecord, reason string, redactFields []string) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if _, err := s.UpdateStatus(ctx, rec.ScopeKey, rec.ID, StatusDeadLettered, nil, map[string]string{"reason": reason}); err != nil {
		logger.Error("failed to transition event to dead_lettered",
			zap.String("eventId", rec.ID),
			zap.String("scopeKey", rec.ScopeKey),
			zap.Error(err),
		)
	}

	dl := BuildDeadLetterRecord(rec.ID+":dl", rec, reason, redactFields)
	if err := s.WriteDeadLetter(ctx, dl); err != nil {
		logger.Error("failed to write dead-letter record",
			zap.String("eventId", rec.ID),
			zap.String("scopeKey", rec.ScopeKey),
			zap.Error(err),
		)
	}
}
