package journal

import (
	"bytes"
	"context"
	"fmt"

	"github.com/roach88/statekit/internal/reducer"
	"github.com/roach88/statekit/internal/state"
)

// Restore rebuilds the latest snapshot: the newest checkpoint (or the
// registry's initial snapshot) with every later state-changing dispatch
// re-applied in journal order.
func (j *Journal) Restore(ctx context.Context, reg *reducer.Registry) (*state.Snapshot, error) {
	snap := reg.Initial()

	cp, ok, err := j.LatestCheckpoint(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	if ok {
		snap, err = reg.Decode(cp.Seq, cp.Data)
		if err != nil {
			return nil, fmt.Errorf("restore: checkpoint %d: %w", cp.Seq, err)
		}
	}

	tail, err := j.ReadActionsAfter(ctx, snap.Seq())
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	for _, rec := range tail {
		if !rec.Changed {
			continue
		}
		next, _, err := reg.Reduce(snap, rec.Action)
		if err != nil {
			return nil, fmt.Errorf("restore: action %d: %w", rec.ID, err)
		}
		snap = next
	}
	return snap, nil
}

// Hydrate returns the restored snapshot in plain-data form. It implements
// the store's hydrator hook. Without a registry only the latest checkpoint
// is returned; an empty journal returns nil data.
func (j *Journal) Hydrate(ctx context.Context) (uint64, state.Data, error) {
	if j.reg == nil {
		cp, ok, err := j.LatestCheckpoint(ctx)
		if err != nil || !ok {
			return 0, nil, err
		}
		return cp.Seq, cp.Data, nil
	}

	records, err := j.ReadActions(ctx)
	if err != nil {
		return 0, nil, err
	}
	_, hasCheckpoint, err := j.LatestCheckpoint(ctx)
	if err != nil {
		return 0, nil, err
	}
	if len(records) == 0 && !hasCheckpoint {
		return 0, nil, nil
	}

	snap, err := j.Restore(ctx, j.reg)
	if err != nil {
		return 0, nil, err
	}
	data, err := j.reg.Encode(snap)
	if err != nil {
		return 0, nil, fmt.Errorf("hydrate: %w", err)
	}
	return snap.Seq(), data, nil
}

// Mismatch is a point where re-applying the journal disagreed with what
// was recorded.
type Mismatch struct {
	RecordID int64
	Seq      uint64
	Reason   string
}

// ReplayResult is the outcome of Replay.
type ReplayResult struct {
	Snapshot    *state.Snapshot
	Applied     int // state-changing dispatches re-applied
	Checkpoints int // checkpoints compared
	Mismatches  []Mismatch
}

// Deterministic reports whether the replay matched the journal everywhere.
func (r ReplayResult) Deterministic() bool {
	return len(r.Mismatches) == 0
}

// Replay re-applies the whole journal from the registry's initial snapshot
// and checks it against what was recorded: every dispatch must change state
// exactly when it did originally, land on the same seq, and every checkpoint
// must encode identically.
func (j *Journal) Replay(ctx context.Context, reg *reducer.Registry) (ReplayResult, error) {
	records, err := j.ReadActions(ctx)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}
	checkpoints, err := j.ReadCheckpoints(ctx)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}
	bySeq := make(map[uint64]state.Data, len(checkpoints))
	for _, cp := range checkpoints {
		bySeq[cp.Seq] = cp.Data
	}

	result := ReplayResult{Snapshot: reg.Initial()}
	snap := result.Snapshot

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		next, changed, err := reg.Reduce(snap, rec.Action)
		switch {
		case err != nil:
			result.Mismatches = append(result.Mismatches, Mismatch{
				RecordID: rec.ID, Seq: rec.Seq,
				Reason: fmt.Sprintf("reducer failed on replay: %v", err),
			})
			continue
		case changed != rec.Changed:
			result.Mismatches = append(result.Mismatches, Mismatch{
				RecordID: rec.ID, Seq: rec.Seq,
				Reason: fmt.Sprintf("changed=%t on replay, journaled changed=%t", changed, rec.Changed),
			})
		case next.Seq() != rec.Seq:
			result.Mismatches = append(result.Mismatches, Mismatch{
				RecordID: rec.ID, Seq: rec.Seq,
				Reason: fmt.Sprintf("replayed seq %d, journaled seq %d", next.Seq(), rec.Seq),
			})
		}
		if changed {
			result.Applied++
			snap = next

			if want, ok := bySeq[snap.Seq()]; ok {
				result.Checkpoints++
				if reason := compareData(reg, snap, want); reason != "" {
					result.Mismatches = append(result.Mismatches, Mismatch{
						RecordID: rec.ID, Seq: snap.Seq(), Reason: reason,
					})
				}
			}
		}
	}

	result.Snapshot = snap
	return result, nil
}

func compareData(reg *reducer.Registry, snap *state.Snapshot, want state.Data) string {
	got, err := reg.Encode(snap)
	if err != nil {
		return fmt.Sprintf("encode replayed snapshot: %v", err)
	}
	gotText, err := marshalData(got)
	if err != nil {
		return err.Error()
	}
	wantText, err := marshalData(want)
	if err != nil {
		return err.Error()
	}
	if !bytes.Equal([]byte(gotText), []byte(wantText)) {
		return fmt.Sprintf("checkpoint differs: replayed %s, journaled %s", gotText, wantText)
	}
	return ""
}
