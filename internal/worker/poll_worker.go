// Package worker drives the periodic poll cycle: fetch the group's
// instances, run the newest one through the dedup guard, notify on change.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vrcnotify/internal/service"
	"vrcnotify/internal/vrchat"
	"vrcnotify/internal/ws"
)

// Status is a snapshot of the worker for the /api/status endpoint.
type Status struct {
	Running        bool      `json:"running"`
	LastPollAt     time.Time `json:"lastPollAt"`
	LastError      string    `json:"lastError,omitempty"`
	LastNotifiedID string    `json:"lastNotifiedId,omitempty"`
}

// PollWorker owns the repeating tick. Cycles are serialized: if a tick fires
// while the previous cycle is still running, the tick is skipped so the
// session slot and dedup state never see concurrent scheduled cycles.
type PollWorker struct {
	client   *vrchat.Client
	notifier *service.Notifier
	guard    *service.DedupGuard
	hub      ws.RealtimePublisher // optional
	interval time.Duration
	log      zerolog.Logger

	cycleMu sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc

	statusMu   sync.RWMutex
	running    bool
	lastPollAt time.Time
	lastErr    string
}

func NewPollWorker(client *vrchat.Client, notifier *service.Notifier, guard *service.DedupGuard, hub ws.RealtimePublisher, interval time.Duration, log zerolog.Logger) *PollWorker {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PollWorker{
		client:   client,
		notifier: notifier,
		guard:    guard,
		hub:      hub,
		interval: interval,
		log:      log.With().Str("component", "poll_worker").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start blocks in the tick loop until Stop is called. Run it in a goroutine.
// The first cycle runs immediately, then every interval.
func (w *PollWorker) Start() {
	w.log.Info().Dur("interval", w.interval).Msg("poll worker started")
	w.setRunning(true)
	defer w.setRunning(false)

	w.runCycle(w.ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info().Msg("poll worker shutting down")
			return
		case <-ticker.C:
			w.runCycle(w.ctx)
		}
	}
}

func (w *PollWorker) Stop() {
	w.cancel()
}

// Status returns a snapshot for the status endpoint.
func (w *PollWorker) Status() Status {
	w.statusMu.RLock()
	defer w.statusMu.RUnlock()
	return Status{
		Running:        w.running,
		LastPollAt:     w.lastPollAt,
		LastError:      w.lastErr,
		LastNotifiedID: w.guard.LastNotified(),
	}
}

func (w *PollWorker) setRunning(v bool) {
	w.statusMu.Lock()
	w.running = v
	w.statusMu.Unlock()
}

func (w *PollWorker) recordCycle(err error) {
	w.statusMu.Lock()
	w.lastPollAt = time.Now().UTC()
	if err != nil {
		w.lastErr = err.Error()
	} else {
		w.lastErr = ""
	}
	w.statusMu.Unlock()
}

// runCycle is one fetch → detect → notify pass. Every error is logged and
// swallowed here: the scheduler must survive any single bad cycle.
func (w *PollWorker) runCycle(ctx context.Context) {
	if !w.cycleMu.TryLock() {
		w.log.Warn().Msg("previous poll cycle still running, skipping tick")
		return
	}
	defer w.cycleMu.Unlock()

	cycleCtx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	instances, err := w.client.FetchGroupInstances(cycleCtx)
	w.recordCycle(err)
	if err != nil {
		w.log.Error().Err(err).Msg("poll cycle failed")
		return
	}

	if len(instances) == 0 {
		w.log.Info().Msg("no active group instances")
		return
	}

	latest := instances[0]
	if !w.guard.IsNew(latest) {
		w.log.Info().Str("instanceId", latest.InstanceID).Msg("no change")
		return
	}

	w.log.Info().
		Str("instanceId", latest.InstanceID).
		Str("world", latest.World.Name).
		Int("members", latest.MemberCount).
		Msg("new group instance detected")

	if w.hub != nil {
		w.hub.Publish(ws.Event{Type: ws.EventInstanceDetected, Data: latest})
	}

	// Delivery failures do not roll back dedup state: the instance is
	// marked notified either way (at-most-once delivery).
	if err := w.notifier.NotifyNewInstance(cycleCtx, latest); err != nil {
		w.log.Error().Err(err).Str("instanceId", latest.InstanceID).Msg("notification delivery failed")
	} else if w.hub != nil {
		w.hub.Publish(ws.Event{Type: ws.EventNotificationSent, Data: latest})
	}
	w.guard.MarkNotified(latest)
}
