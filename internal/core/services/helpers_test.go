package services

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vncsmyrnk/livepoll/internal/core/domain"
	"github.com/vncsmyrnk/livepoll/internal/core/ports"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeClock fires timers synchronously from Advance.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testEpoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) ports.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type recordingEmitter struct {
	mu           sync.Mutex
	sent         map[string][]domain.Event
	broadcasts   []domain.Event
	disconnected map[string]string
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{
		sent:         make(map[string][]domain.Event),
		disconnected: make(map[string]string),
	}
}

func (e *recordingEmitter) Send(connID string, event domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent[connID] = append(e.sent[connID], event)
}

func (e *recordingEmitter) Broadcast(event domain.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broadcasts = append(e.broadcasts, event)
}

func (e *recordingEmitter) Disconnect(connID string, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.disconnected[connID] = reason
}

func (e *recordingEmitter) sentTo(connID string, name domain.EventName) []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return filterEvents(e.sent[connID], name)
}

func (e *recordingEmitter) broadcast(name domain.EventName) []domain.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return filterEvents(e.broadcasts, name)
}

func (e *recordingEmitter) lastBroadcast(name domain.EventName) (domain.Event, bool) {
	events := e.broadcast(name)
	if len(events) == 0 {
		return domain.Event{}, false
	}
	return events[len(events)-1], true
}

func filterEvents(events []domain.Event, name domain.EventName) []domain.Event {
	var out []domain.Event
	for _, ev := range events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

type recordingArchiver struct {
	polls []*domain.ArchivedPoll
}

func (a *recordingArchiver) ArchivePoll(poll *domain.ArchivedPoll) {
	a.polls = append(a.polls, poll)
}

type stubRoster struct {
	ids []uuid.UUID
}

func (r *stubRoster) ActiveStudentIDs() []uuid.UUID { return r.ids }

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
