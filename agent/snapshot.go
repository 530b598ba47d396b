package agent

import (
	"context"
	"sync"

	"goa.design/clue/log"
)

// Snapshotter records a version of the user's workspace after an exchange
// changed it.
type Snapshotter interface {
	CreateSnapshot(ctx context.Context, rc RequestContext, reason string) (versionID string, err error)
}

// SideEffectTrigger requests at most one snapshot per exchange when a
// mutating tool was executed.
type SideEffectTrigger struct {
	snapshotter Snapshotter
	mutating    map[string]bool
	once        sync.Once
}

// NewSideEffectTrigger returns a trigger for the given mutating tool names.
// A nil snapshotter disables it.
func NewSideEffectTrigger(snapshotter Snapshotter, mutating []string) *SideEffectTrigger {
	set := make(map[string]bool, len(mutating))
	for _, name := range mutating {
		set[name] = true
	}
	return &SideEffectTrigger{snapshotter: snapshotter, mutating: set}
}

// Mutated reports whether any of executed is a mutating tool.
func (t *SideEffectTrigger) Mutated(executed []string) bool {
	for _, name := range executed {
		if t.mutating[name] {
			return true
		}
	}
	return false
}

// Fire requests the snapshot and forwards snapshot_created on success. It
// returns the version id, or "" when nothing was recorded. Failures are logged
// and swallowed. Only the first call has any effect.
func (t *SideEffectTrigger) Fire(ctx context.Context, rc RequestContext, executed []string, b *Broadcaster, round int) string {
	var version string
	t.once.Do(func() {
		if t.snapshotter == nil || !t.Mutated(executed) {
			return
		}
		ctx = context.WithoutCancel(ctx)
		v, err := t.snapshotter.CreateSnapshot(ctx, rc, "agent exchange "+rc.ExchangeID)
		if err != nil {
			log.Warn(ctx, log.KV{K: "msg", V: "snapshot failed"},
				log.KV{K: "exchange_id", V: rc.ExchangeID},
				log.KV{K: "err", V: err.Error()})
			return
		}
		version = v
		log.Info(ctx, log.KV{K: "msg", V: "snapshot created"},
			log.KV{K: "exchange_id", V: rc.ExchangeID},
			log.KV{K: "version_id", V: v})
		b.Forward(round, SnapshotCreated(v))
	})
	return version
}
