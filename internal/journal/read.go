package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/state"
)

// Record is one journaled dispatch.
type Record struct {
	ID      int64
	Seq     uint64
	Action  action.Action
	Changed bool
}

// CorrelationSummary describes the dispatches sharing one correlation id.
type CorrelationSummary struct {
	CorrelationID string
	Actions       int
	FirstSeq      uint64
	LastSeq       uint64
}

// Checkpoint is a stored snapshot in plain-data form.
type Checkpoint struct {
	Seq  uint64
	Data state.Data
}

// ReadActions returns every journaled dispatch.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC.
//
// Returns an empty slice (not nil) if the journal is empty.
func (j *Journal) ReadActions(ctx context.Context) ([]Record, error) {
	return j.readRecords(ctx, `
		SELECT id, seq, type, payload, correlation_id, timestamp, changed
		FROM actions
		ORDER BY seq ASC, id ASC
	`)
}

// ReadActionsAfter returns dispatches recorded after seq, in order.
// No-op dispatches at seq itself are excluded.
func (j *Journal) ReadActionsAfter(ctx context.Context, seq uint64) ([]Record, error) {
	return j.readRecords(ctx, `
		SELECT id, seq, type, payload, correlation_id, timestamp, changed
		FROM actions
		WHERE seq > ?
		ORDER BY seq ASC, id ASC
	`, int64(seq))
}

// ReadCorrelation returns the dispatches sharing correlationID: the trigger,
// its effect follow-ups and any compensating actions.
func (j *Journal) ReadCorrelation(ctx context.Context, correlationID string) ([]Record, error) {
	return j.readRecords(ctx, `
		SELECT id, seq, type, payload, correlation_id, timestamp, changed
		FROM actions
		WHERE correlation_id = ?
		ORDER BY seq ASC, id ASC
	`, correlationID)
}

// ListCorrelations summarizes every correlation id, ordered by first seq.
func (j *Journal) ListCorrelations(ctx context.Context) ([]CorrelationSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT correlation_id, COUNT(*), MIN(seq), MAX(seq)
		FROM actions
		GROUP BY correlation_id
		ORDER BY MIN(seq) ASC, MIN(id) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list correlations: %w", err)
	}
	defer rows.Close()

	summaries := []CorrelationSummary{}
	for rows.Next() {
		var (
			s           CorrelationSummary
			first, last int64
		)
		if err := rows.Scan(&s.CorrelationID, &s.Actions, &first, &last); err != nil {
			return nil, fmt.Errorf("scan correlation: %w", err)
		}
		s.FirstSeq, s.LastSeq = uint64(first), uint64(last)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate correlations: %w", err)
	}
	return summaries, nil
}

// LatestCheckpoint returns the checkpoint with the highest seq.
// ok is false when no checkpoint exists.
func (j *Journal) LatestCheckpoint(ctx context.Context) (cp Checkpoint, ok bool, err error) {
	var (
		seq  int64
		text string
	)
	err = j.db.QueryRowContext(ctx, `
		SELECT seq, data FROM checkpoints
		ORDER BY seq DESC
		LIMIT 1
	`).Scan(&seq, &text)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, false, nil
	}
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	data, err := unmarshalData(text)
	if err != nil {
		return Checkpoint{}, false, err
	}
	return Checkpoint{Seq: uint64(seq), Data: data}, true, nil
}

// ReadCheckpoints returns every checkpoint ordered by seq.
func (j *Journal) ReadCheckpoints(ctx context.Context) ([]Checkpoint, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT seq, data FROM checkpoints ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()

	checkpoints := []Checkpoint{}
	for rows.Next() {
		var (
			seq  int64
			text string
		)
		if err := rows.Scan(&seq, &text); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		data, err := unmarshalData(text)
		if err != nil {
			return nil, err
		}
		checkpoints = append(checkpoints, Checkpoint{Seq: uint64(seq), Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return checkpoints, nil
}

func (j *Journal) readRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec     Record
		seq     int64
		payload string
		changed int
	)
	if err := rows.Scan(
		&rec.ID,
		&seq,
		&rec.Action.Type,
		&payload,
		&rec.Action.Meta.CorrelationID,
		&rec.Action.Meta.Timestamp,
		&changed,
	); err != nil {
		return Record{}, fmt.Errorf("scan action: %w", err)
	}

	p, err := unmarshalPayload(payload)
	if err != nil {
		return Record{}, fmt.Errorf("action %d: %w", rec.ID, err)
	}
	rec.Action.Payload = p
	rec.Seq = uint64(seq)
	rec.Changed = changed == 1
	return rec, nil
}
