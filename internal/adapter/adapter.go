// Package adapter connects each local entity type to its counterpart at the
// tax authority. The sync engine is generic over EntityAdapter and never
// touches products or invoices directly.
package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/mrlokans/taxsync/internal/entities"
	"github.com/mrlokans/taxsync/internal/retry"
	"github.com/mrlokans/taxsync/internal/taxauthority"
)

// Record is one local entity handled by an adapter.
type Record interface {
	SyncKey() uint
	// Describe identifies the record in log details, e.g. `product #7 "Widget" (code "BAD")`.
	Describe() string
}

// Snapshot fixes the eligible population of a job at creation time.
type Snapshot struct {
	Total  int
	Cursor string
}

// ValidationResult lists the local problems found with a record.
type ValidationResult struct {
	Problems []string
}

// Valid reports whether no problem was found.
func (v ValidationResult) Valid() bool {
	return len(v.Problems) == 0
}

// Reason joins the problems into one message.
func (v ValidationResult) Reason() string {
	return strings.Join(v.Problems, "; ")
}

func (v *ValidationResult) add(problem string) {
	v.Problems = append(v.Problems, problem)
}

// OutcomeKind classifies a submission.
type OutcomeKind int

const (
	OutcomeAccepted OutcomeKind = iota
	OutcomeRejected
	OutcomeTransientFailure
	// OutcomeFault is a failure that says nothing about the record itself,
	// such as a refused API key. The job fails and the record stays pending.
	OutcomeFault
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransientFailure:
		return "transient_failure"
	case OutcomeFault:
		return "fault"
	}
	return "unknown"
}

// SubmissionOutcome is the result of one external call.
type SubmissionOutcome struct {
	Kind        OutcomeKind
	ExternalRef string
	Reason      string
	Err         error
}

func Accepted(externalRef string) SubmissionOutcome {
	return SubmissionOutcome{Kind: OutcomeAccepted, ExternalRef: externalRef}
}

func Rejected(reason string) SubmissionOutcome {
	return SubmissionOutcome{Kind: OutcomeRejected, Reason: reason}
}

func TransientFailure(err error) SubmissionOutcome {
	return SubmissionOutcome{Kind: OutcomeTransientFailure, Reason: err.Error(), Err: err}
}

func Fault(err error) SubmissionOutcome {
	return SubmissionOutcome{Kind: OutcomeFault, Reason: err.Error(), Err: err}
}

// EntityAdapter is the per-entity-type capability set the executor drives.
type EntityAdapter interface {
	EntityType() entities.SyncEntityType

	// Snapshot counts eligible records and returns the starting cursor.
	Snapshot(ctx context.Context) (Snapshot, error)

	// EligibleBatch returns up to batchSize eligible records after cursor, in
	// ascending local ID order, and the cursor that follows them.
	EligibleBatch(ctx context.Context, cursor string, batchSize int) ([]Record, string, error)

	Validate(rec Record) ValidationResult
	Submit(ctx context.Context, rec Record) SubmissionOutcome

	MarkSynced(ctx context.Context, rec Record, externalRef string, attempts int) error
	MarkFailed(ctx context.Context, rec Record, reason string, attempts int) error

	// Requeue moves failed records back to pending; no IDs means all of them.
	Requeue(ctx context.Context, ids []uint) (int64, error)
}

// ByType indexes adapters by their entity type.
func ByType(adapters ...EntityAdapter) map[entities.SyncEntityType]EntityAdapter {
	m := make(map[entities.SyncEntityType]EntityAdapter, len(adapters))
	for _, a := range adapters {
		m[a.EntityType()] = a
	}
	return m
}

// ErrUnexpectedRecord is returned when a record of another entity type reaches an adapter.
var ErrUnexpectedRecord = errors.New("unexpected record type")

// outcomeFromError converts a failed client call into a submission outcome.
func outcomeFromError(err error) SubmissionOutcome {
	if errors.Is(err, taxauthority.ErrUnauthorized) {
		return Fault(err)
	}
	if retry.IsTransient(err) {
		return TransientFailure(err)
	}
	return Rejected(err.Error())
}
