package manager

import (
	"reflect"
	"sync"
)

// Event is a session lifecycle event.
type Event string

const (
	EventError                    Event = "ERROR"
	EventReady                    Event = "READY"
	EventOnline                   Event = "ONLINE"
	EventOffline                  Event = "OFFLINE"
	EventConnecting               Event = "CONNECTING"
	EventConsoleInit              Event = "CONSOLE_INIT"
	EventConsoleReady             Event = "CONSOLE_READY"
	EventTranslateInit            Event = "TRANSLATE_INIT"
	EventTranslateLanguageChanged Event = "TRANSLATE_LANGUAGE_CHANGED"
	EventDisplayRealmChanged      Event = "DISPLAY_REALM_CHANGED"
)

// ErrorKind classifies the session error reported through EventError.
type ErrorKind string

const (
	ManagerFailedToLoad   ErrorKind = "MANAGER_FAILED_TO_LOAD"
	AuthFailed            ErrorKind = "AUTH_FAILED"
	AuthTypeUnsupported   ErrorKind = "AUTH_TYPE_UNSUPPORTED"
	ConsoleError          ErrorKind = "CONSOLE_INIT_ERROR"
	EventsConnectionError ErrorKind = "EVENTS_CONNECTION_ERROR"
	TranslationError      ErrorKind = "TRANSLATION_ERROR"
)

// Listener receives lifecycle events. Listeners are called from a single dispatcher
// goroutine in registration order and must not block.
type Listener interface {
	OnEvent(Event)
}

type funcListener struct {
	fn func(Event)
}

func (l *funcListener) OnEvent(e Event) {
	l.fn(e)
}

// registry is the ordered, de-duplicated listener set.
type registry struct {
	mu        sync.Mutex
	listeners []Listener
}

func isComparable(l Listener) bool {
	return l != nil && reflect.TypeOf(l).Comparable()
}

func (r *registry) add(l Listener) bool {
	if !isComparable(l) {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.listeners {
		if existing == l {
			return true
		}
	}
	r.listeners = append(r.listeners, l)
	return true
}

func (r *registry) remove(l Listener) {
	if !isComparable(l) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.listeners {
		if existing == l {
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			return
		}
	}
}

func (r *registry) contains(l Listener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.listeners {
		if existing == l {
			return true
		}
	}
	return false
}

func (r *registry) snapshot() []Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Listener(nil), r.listeners...)
}

// AddListener registers l. Listener values must be comparable (pointers, or structs of
// comparable fields) so they can be de-duplicated and removed; AddListener reports false
// for anything else. Use Subscribe for plain funcs.
func (m *Manager) AddListener(l Listener) bool {
	return m.listeners.add(l)
}

// RemoveListener unregisters l. Pending deliveries to l are dropped.
func (m *Manager) RemoveListener(l Listener) {
	m.listeners.remove(l)
}

// Subscribe registers fn and returns the func that removes it.
func (m *Manager) Subscribe(fn func(Event)) func() {
	l := &funcListener{fn: fn}
	m.listeners.add(l)
	return func() { m.listeners.remove(l) }
}

// emit queues e for delivery on the dispatcher goroutine. It never blocks: once the queue is
// full, events spill into an ordered overflow that the dispatcher drains after the queue.
func (m *Manager) emit(e Event) {
	select {
	case <-m.closed:
		return
	default:
	}
	m.opts.metrics.ObserveEvent(string(e))

	m.overflowMu.Lock()
	defer m.overflowMu.Unlock()
	if len(m.overflow) == 0 {
		select {
		case m.queue <- e:
			return
		default:
		}
	}
	m.overflow = append(m.overflow, e)
}

// takeOverflow hands the overflow to the dispatcher once everything queued before it has
// been delivered.
func (m *Manager) takeOverflow() []Event {
	m.overflowMu.Lock()
	defer m.overflowMu.Unlock()
	if len(m.queue) > 0 || len(m.overflow) == 0 {
		return nil
	}
	batch := m.overflow
	m.overflow = nil
	return batch
}

func (m *Manager) dispatch() {
	defer close(m.dispatched)
	for {
		select {
		case e := <-m.queue:
			m.deliver(e)
		case <-m.closed:
			return
		}
		for batch := m.takeOverflow(); batch != nil; batch = m.takeOverflow() {
			for _, e := range batch {
				m.deliver(e)
			}
		}
	}
}

func (m *Manager) deliver(e Event) {
	for _, l := range m.listeners.snapshot() {
		m.delivering.Store(true)
		select {
		case <-m.closed:
			m.delivering.Store(false)
			return
		default:
		}
		if m.listeners.contains(l) {
			l.OnEvent(e)
		}
		m.delivering.Store(false)
	}
}
