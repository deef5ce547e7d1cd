package ephemeral

import (
	"context"
	"sort"
	"sync"

	"github.com/evansbry000/SmartPlugApp/internal/record"
)

// StatusChange describes one write to devices/{deviceId}/status.
// Before is nil when the node did not exist; After is nil when the write
// deleted it.
type StatusChange struct {
	DeviceID string
	Before   record.Fields
	After    record.Fields
}

// Deleted reports whether the change removed the status node.
func (c StatusChange) Deleted() bool {
	return c.After == nil
}

// EventEntry is a newly created events/{eventId} node.
type EventEntry struct {
	EventID string
	Value   record.Fields
}

// Listener receives tree notifications. Implementations must not block:
// calls happen on the writer's goroutine.
type Listener interface {
	StatusWritten(StatusChange)
	EventCreated(EventEntry)
}

// Device is one entry of the device directory.
type Device struct {
	ID     string
	Status record.Fields // nil when the device has no status node
	Other  record.Fields // remaining child nodes
}

// HasStatus reports whether the device currently has a status node.
func (d Device) HasStatus() bool {
	return d.Status != nil
}

type deviceNode struct {
	status record.Fields
	other  record.Fields
}

// Tree is the in-memory ephemeral store.
//
// Thread-safety: All methods are safe for concurrent use.
type Tree struct {
	mu        sync.RWMutex
	devices   map[string]*deviceNode
	events    map[string]record.Fields
	listeners []Listener
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{
		devices: make(map[string]*deviceNode),
		events:  make(map[string]record.Fields),
	}
}

// Subscribe registers l for every subsequent notification.
func (t *Tree) Subscribe(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// SetStatus replaces the status node of a device. A nil status deletes it.
func (t *Tree) SetStatus(deviceID string, status record.Fields) {
	if status == nil {
		t.RemoveStatus(deviceID)
		return
	}

	t.mu.Lock()
	node := t.device(deviceID)
	change := StatusChange{
		DeviceID: deviceID,
		Before:   node.status.Clone(),
		After:    status.Clone(),
	}
	node.status = status.Clone()
	listeners := t.listeners
	t.mu.Unlock()

	for _, l := range listeners {
		l.StatusWritten(change)
	}
}

// RemoveStatus deletes the status node of a device. Removing a missing node
// is a no-op and notifies nobody.
func (t *Tree) RemoveStatus(deviceID string) {
	t.mu.Lock()
	node, ok := t.devices[deviceID]
	if !ok || node.status == nil {
		t.mu.Unlock()
		return
	}
	change := StatusChange{DeviceID: deviceID, Before: node.status}
	node.status = nil
	t.pruneLocked(deviceID, node)
	listeners := t.listeners
	t.mu.Unlock()

	for _, l := range listeners {
		l.StatusWritten(change)
	}
}

// SetDeviceField writes a non-status child node of a device. A nil value
// deletes it. Field writes do not notify listeners.
func (t *Tree) SetDeviceField(deviceID, key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if value == nil {
		node, ok := t.devices[deviceID]
		if !ok {
			return
		}
		delete(node.other, key)
		t.pruneLocked(deviceID, node)
		return
	}
	t.device(deviceID).other[key] = value
}

// PushEvent stores a log entry. Only the first write of an id counts as a
// creation and notifies listeners; later writes replace the value silently.
// An empty value stores nothing. Returns true if the entry was created.
func (t *Tree) PushEvent(eventID string, value record.Fields) bool {
	if eventID == "" || len(value) == 0 {
		return false
	}

	t.mu.Lock()
	_, exists := t.events[eventID]
	t.events[eventID] = value.Clone()
	listeners := t.listeners
	t.mu.Unlock()

	if exists {
		return false
	}
	entry := EventEntry{EventID: eventID, Value: value.Clone()}
	for _, l := range listeners {
		l.EventCreated(entry)
	}
	return true
}

// RemoveEvent deletes a log entry. A later PushEvent of the same id is a
// new creation.
func (t *Tree) RemoveEvent(eventID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.events, eventID)
}

// Status returns a copy of a device's status node.
func (t *Tree) Status(deviceID string) (record.Fields, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	node, ok := t.devices[deviceID]
	if !ok || node.status == nil {
		return nil, false
	}
	return node.status.Clone(), true
}

// Devices reads the whole device directory in one consistent view,
// sorted by device id. Returns an empty slice when no device exists.
func (t *Tree) Devices(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	devices := make([]Device, 0, len(t.devices))
	for id, node := range t.devices {
		devices = append(devices, Device{
			ID:     id,
			Status: node.status.Clone(),
			Other:  node.other.Clone(),
		})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })
	return devices, nil
}

func (t *Tree) device(id string) *deviceNode {
	node, ok := t.devices[id]
	if !ok {
		node = &deviceNode{other: record.Fields{}}
		t.devices[id] = node
	}
	return node
}

// pruneLocked drops a device with no children left.
func (t *Tree) pruneLocked(id string, node *deviceNode) {
	if node.status == nil && len(node.other) == 0 {
		delete(t.devices, id)
	}
}
