package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/evansbry000/SmartPlugApp/internal/ephemeral"
	"github.com/evansbry000/SmartPlugApp/internal/record"
)

// fakeDurable is an in-memory durable store with per-device failure
// injection.
type fakeDurable struct {
	mu      sync.Mutex
	devices map[string]record.Document
	events  map[string][]record.Document
	history map[string][]record.Document
	nextID  int

	failUpdate  map[string]error
	failEvent   map[string]error
	failHistory map[string]error
}

func newFakeDurable() *fakeDurable {
	return &fakeDurable{
		devices:     make(map[string]record.Document),
		events:      make(map[string][]record.Document),
		history:     make(map[string][]record.Document),
		failUpdate:  make(map[string]error),
		failEvent:   make(map[string]error),
		failHistory: make(map[string]error),
	}
}

func (f *fakeDurable) UpdateDevice(_ context.Context, deviceID string, doc record.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failUpdate[deviceID]; err != nil {
		return err
	}
	f.devices[deviceID] = doc
	return nil
}

func (f *fakeDurable) AddEvent(_ context.Context, deviceID string, doc record.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failEvent[deviceID]; err != nil {
		return "", err
	}
	f.events[deviceID] = append(f.events[deviceID], doc)
	f.nextID++
	return fmt.Sprintf("ev-%d", f.nextID), nil
}

func (f *fakeDurable) AddHistory(_ context.Context, deviceID string, doc record.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failHistory[deviceID]; err != nil {
		return "", err
	}
	f.history[deviceID] = append(f.history[deviceID], doc)
	f.nextID++
	return fmt.Sprintf("h-%d", f.nextID), nil
}

func (f *fakeDurable) writes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.devices)
	for _, docs := range f.events {
		n += len(docs)
	}
	for _, docs := range f.history {
		n += len(docs)
	}
	return n
}

func (f *fakeDurable) eventsFor(deviceID string) []record.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]record.Document(nil), f.events[deviceID]...)
}

func (f *fakeDurable) historyFor(deviceID string) []record.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]record.Document(nil), f.history[deviceID]...)
}

func (f *fakeDurable) device(deviceID string) (record.Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.devices[deviceID]
	return doc, ok
}

// staticDirectory serves a fixed device directory.
type staticDirectory struct {
	devices []ephemeral.Device
	err     error
}

func (d staticDirectory) Devices(context.Context) ([]ephemeral.Device, error) {
	return d.devices, d.err
}

// fakeAlerts records published emergencies.
type fakeAlerts struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (a *fakeAlerts) PublishEmergency(_ context.Context, eventID string, ev record.EmergencyEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.published = append(a.published, ev.DeviceID+"/"+eventID)
	return nil
}

// countingRecorder tallies observations by "op/result".
type countingRecorder struct {
	mu      sync.Mutex
	writes  map[string]int
	deleted map[string]int
	jobs    map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		writes:  make(map[string]int),
		deleted: make(map[string]int),
		jobs:    make(map[string]int),
	}
}

func (r *countingRecorder) ObserveWrite(op, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes[op+"/"+result]++
}

func (r *countingRecorder) ObserveHistoryDeleted(deviceID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted[deviceID] += n
}

func (r *countingRecorder) ObserveJob(job string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job]++
}

func (r *countingRecorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes[key]
}
