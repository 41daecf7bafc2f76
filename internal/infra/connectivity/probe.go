package connectivity

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ProbeMonitor derives reachability from a periodic HEAD request against the
// catalog host. Listeners are notified once per transition, never per poll,
// and notifications to all listeners run on a single goroutine so no listener
// ever sees concurrent invocations.
type ProbeMonitor struct {
	probeURL   string
	interval   time.Duration
	httpClient *http.Client
	logger     *slog.Logger

	mu        sync.Mutex
	connected bool
	known     bool
	listeners map[int]func(bool)
	nextID    int

	transitions chan bool
	stop        chan struct{}
	done        chan struct{}
	started     bool
	startOnce   sync.Once
	stopOnce    sync.Once
}

// NewProbeMonitor constructs a monitor polling probeURL every interval.
func NewProbeMonitor(probeURL string, interval time.Duration, logger *slog.Logger) *ProbeMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &ProbeMonitor{
		probeURL: strings.TrimSpace(probeURL),
		interval: interval,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		logger:      logger.With("component", "connectivity.probe"),
		listeners:   make(map[int]func(bool)),
		transitions: make(chan bool, 8),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start begins polling. The first probe runs immediately so Connected is
// meaningful before the first tick.
func (m *ProbeMonitor) Start() {
	m.startOnce.Do(func() {
		m.started = true
		m.observe(m.probe())
		go m.poll()
		go m.dispatch()
	})
}

// Stop ends polling and notification delivery.
func (m *ProbeMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		if m.started {
			<-m.done
		}
	})
}

// Connected implements catalog.Monitor.
func (m *ProbeMonitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Subscribe implements catalog.Monitor.
func (m *ProbeMonitor) Subscribe(listener func(bool)) func() {
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

func (m *ProbeMonitor) poll() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.observe(m.probe())
		}
	}
}

func (m *ProbeMonitor) probe() bool {
	if m.probeURL == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	// Any answer short of a server meltdown proves the network path.
	return resp.StatusCode < http.StatusInternalServerError
}

func (m *ProbeMonitor) observe(connected bool) {
	m.mu.Lock()
	changed := !m.known || m.connected != connected
	m.known = true
	m.connected = connected
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Info("connectivity changed", "connected", connected)
	select {
	case m.transitions <- connected:
	case <-m.stop:
	}
}

// dispatch delivers transitions to listeners in order, one at a time.
func (m *ProbeMonitor) dispatch() {
	defer close(m.done)
	for {
		select {
		case <-m.stop:
			return
		case connected := <-m.transitions:
			m.mu.Lock()
			listeners := make([]func(bool), 0, len(m.listeners))
			for _, fn := range m.listeners {
				listeners = append(listeners, fn)
			}
			m.mu.Unlock()
			for _, fn := range listeners {
				fn(connected)
			}
		}
	}
}
