package service

import (
	"sync"

	"vrcnotify/internal/model"
)

// DedupGuard remembers the single last-notified instance id so the same
// instance is never announced twice across poll cycles. Shared between the
// scheduled poll worker and manual triggers, so access is mutex-protected.
type DedupGuard struct {
	mu             sync.Mutex
	lastNotifiedID string // empty before the first notification
}

func NewDedupGuard() *DedupGuard {
	return &DedupGuard{}
}

// IsNew reports whether the instance differs from the last notified one.
// The very first observation (empty slot) is always new.
func (g *DedupGuard) IsNew(inst model.GroupInstance) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return inst.InstanceID != g.lastNotifiedID
}

// MarkNotified records the instance as announced. Call it exactly once per
// genuinely new instance, after the notification dispatch.
func (g *DedupGuard) MarkNotified(inst model.GroupInstance) {
	g.mu.Lock()
	g.lastNotifiedID = inst.InstanceID
	g.mu.Unlock()
}

// LastNotified returns the current slot value, empty if nothing was
// announced yet.
func (g *DedupGuard) LastNotified() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastNotifiedID
}
