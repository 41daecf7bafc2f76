package connectivity

import "sync"

// ManualMonitor is a catalog.Monitor whose state is driven by the caller.
// It backs the forced-offline configuration switch and tests that script
// connectivity transitions.
type ManualMonitor struct {
	mu        sync.Mutex
	connected bool
	listeners map[int]func(bool)
	nextID    int
}

// NewManualMonitor constructs a monitor in the given initial state.
func NewManualMonitor(connected bool) *ManualMonitor {
	return &ManualMonitor{
		connected: connected,
		listeners: make(map[int]func(bool)),
	}
}

// Start implements the app lifecycle; nothing to poll.
func (m *ManualMonitor) Start() {}

// Stop implements the app lifecycle.
func (m *ManualMonitor) Stop() {}

// Connected implements catalog.Monitor.
func (m *ManualMonitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Subscribe implements catalog.Monitor.
func (m *ManualMonitor) Subscribe(listener func(bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// SetConnected records a new state and notifies listeners synchronously when
// it differs from the previous one. Listener calls happen on the caller's
// goroutine, one listener at a time.
func (m *ManualMonitor) SetConnected(connected bool) {
	m.mu.Lock()
	if m.connected == connected {
		m.mu.Unlock()
		return
	}
	m.connected = connected
	listeners := make([]func(bool), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(connected)
	}
}
