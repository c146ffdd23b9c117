package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrcnotify/internal/service"
	"vrcnotify/internal/vrchat"
)

// fakeGroupAPI serves a login endpoint (no 2FA) and an instances endpoint
// that replays scripted responses, one per call.
type fakeGroupAPI struct {
	mu        sync.Mutex
	responses []string // JSON bodies, replayed in order; last one repeats
	statuses  []int    // optional, parallel to responses
	call      int
}

func (f *fakeGroupAPI) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/user", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "auth", Value: "tok", Path: "/"})
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/groups/grp_w/instances", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		i := f.call
		if i >= len(f.responses) {
			i = len(f.responses) - 1
		}
		f.call++
		status := http.StatusOK
		if i < len(f.statuses) {
			status = f.statuses[i]
		}
		body := f.responses[i]
		f.mu.Unlock()

		w.WriteHeader(status)
		fmt.Fprint(w, body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// webhookSink records every payload posted to it.
type webhookSink struct {
	mu     sync.Mutex
	bodies []string
	status int
}

func (s *webhookSink) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.bodies = append(s.bodies, string(body))
		s.mu.Unlock()
		if s.status != 0 {
			w.WriteHeader(s.status)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (s *webhookSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bodies)
}

func instanceBody(id string) string {
	return fmt.Sprintf(`[{"instanceId":%q,"location":"wrld_1:%s","memberCount":3,"world":{"id":"wrld_1","name":"Hangout"}}]`, id, id)
}

func newTestWorker(t *testing.T, api *fakeGroupAPI, webhookURL string) (*PollWorker, *service.DedupGuard) {
	t.Helper()
	srv := api.server(t)
	client := vrchat.NewClient(srv.URL, vrchat.Credentials{
		Username: "alice", Password: "hunter2",
	}, "grp_w", 5, 5*time.Second, zerolog.Nop())
	notifier := service.NewNotifier(webhookURL, zerolog.Nop())
	guard := service.NewDedupGuard()
	w := NewPollWorker(client, notifier, guard, nil, time.Minute, zerolog.Nop())
	return w, guard
}

func TestSameInstanceNotifiesExactlyOnce(t *testing.T) {
	api := &fakeGroupAPI{responses: []string{instanceBody("A"), instanceBody("A")}}
	sink := &webhookSink{}
	w, guard := newTestWorker(t, api, sink.server(t).URL)

	w.runCycle(context.Background())
	w.runCycle(context.Background())

	assert.Equal(t, 1, sink.count(), "constant instance id must notify exactly once")
	assert.Equal(t, "A", guard.LastNotified())
}

func TestChangedInstanceNotifiesAgain(t *testing.T) {
	api := &fakeGroupAPI{responses: []string{instanceBody("A"), instanceBody("B")}}
	sink := &webhookSink{}
	w, guard := newTestWorker(t, api, sink.server(t).URL)

	w.runCycle(context.Background())
	w.runCycle(context.Background())

	require.Equal(t, 2, sink.count())
	assert.Contains(t, sink.bodies[0], "instanceId=A")
	assert.Contains(t, sink.bodies[1], "instanceId=B")
	assert.NotEqual(t, sink.bodies[0], sink.bodies[1])
	assert.Equal(t, "B", guard.LastNotified())
}

func TestEmptyListLeavesStateUntouched(t *testing.T) {
	api := &fakeGroupAPI{responses: []string{`[]`}}
	sink := &webhookSink{}
	w, guard := newTestWorker(t, api, sink.server(t).URL)

	w.runCycle(context.Background())

	assert.Equal(t, 0, sink.count())
	assert.Empty(t, guard.LastNotified())
}

func TestWebhookUnsetStillMarksNotified(t *testing.T) {
	api := &fakeGroupAPI{responses: []string{instanceBody("A")}}
	w, guard := newTestWorker(t, api, "")

	w.runCycle(context.Background())

	assert.Equal(t, "A", guard.LastNotified(), "dedup state updates as if delivered")
}

func TestDeliveryFailureStillMarksNotified(t *testing.T) {
	api := &fakeGroupAPI{responses: []string{instanceBody("A"), instanceBody("A")}}
	sink := &webhookSink{status: http.StatusInternalServerError}
	w, guard := newTestWorker(t, api, sink.server(t).URL)

	w.runCycle(context.Background())
	w.runCycle(context.Background())

	assert.Equal(t, 1, sink.count(), "no redelivery of a failed notification")
	assert.Equal(t, "A", guard.LastNotified())
}

func TestFetchErrorDoesNotCrashCycle(t *testing.T) {
	api := &fakeGroupAPI{
		responses: []string{`{"error":{"message":"boom"}}`},
		statuses:  []int{http.StatusInternalServerError},
	}
	sink := &webhookSink{}
	w, guard := newTestWorker(t, api, sink.server(t).URL)

	w.runCycle(context.Background())

	assert.Equal(t, 0, sink.count())
	assert.Empty(t, guard.LastNotified())
	assert.Contains(t, w.Status().LastError, "boom")
}

func TestStatusReflectsLastCycle(t *testing.T) {
	api := &fakeGroupAPI{responses: []string{instanceBody("A")}}
	sink := &webhookSink{}
	w, guard := newTestWorker(t, api, sink.server(t).URL)

	before := time.Now()
	w.runCycle(context.Background())

	st := w.Status()
	assert.Empty(t, st.LastError)
	assert.False(t, st.LastPollAt.Before(before.UTC().Truncate(time.Second)))
	assert.Equal(t, guard.LastNotified(), st.LastNotifiedID)
}
