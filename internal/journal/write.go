package journal

import (
	"context"
	"fmt"

	"github.com/roach88/statekit/internal/action"
	"github.com/roach88/statekit/internal/state"
)

// Append writes one dispatch record. seq is the snapshot seq after the
// dispatch; changed reports whether the dispatch produced a new snapshot.
func (j *Journal) Append(ctx context.Context, a action.Action, seq uint64, changed bool) error {
	payload, err := marshalPayload(a.Payload)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO actions
		(seq, type, payload, correlation_id, timestamp, changed)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		int64(seq),
		a.Type,
		payload,
		a.Meta.CorrelationID,
		a.Meta.Timestamp,
		boolToInt(changed),
	)
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

// Checkpoint stores the plain-data form of the snapshot at seq.
// Uses ON CONFLICT(seq) DO NOTHING: a seq is only ever checkpointed once.
func (j *Journal) Checkpoint(ctx context.Context, seq uint64, data state.Data) error {
	text, err := marshalData(data)
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO checkpoints (seq, data)
		VALUES (?, ?)
		ON CONFLICT(seq) DO NOTHING
	`, int64(seq), text)
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// CheckpointSnapshot encodes snap with the journal's registry and stores it.
func (j *Journal) CheckpointSnapshot(ctx context.Context, snap *state.Snapshot) error {
	if j.reg == nil {
		return fmt.Errorf("write checkpoint: no registry configured")
	}
	data, err := j.reg.Encode(snap)
	if err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return j.Checkpoint(ctx, snap.Seq(), data)
}

// Observe appends a dispatch and, when due, a checkpoint. It implements the
// store's observer hook. Failures are logged and kept for Err.
func (j *Journal) Observe(a action.Action, prev, next *state.Snapshot) {
	ctx := context.Background()
	changed := prev != next

	if err := j.Append(ctx, a, next.Seq(), changed); err != nil {
		j.fail(a, err)
		return
	}
	if !changed || j.checkpointEvery == 0 || next.Seq()%j.checkpointEvery != 0 {
		return
	}
	if err := j.CheckpointSnapshot(ctx, next); err != nil {
		j.fail(a, err)
	}
}

func (j *Journal) fail(a action.Action, err error) {
	j.setErr(err)
	j.logger.Error("journal write failed",
		"action", a.Type,
		"correlation_id", a.Meta.CorrelationID,
		"error", err,
	)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
