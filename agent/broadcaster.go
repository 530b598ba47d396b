package agent

import (
	"errors"
	"sync"
)

// ErrObserverGone is returned by an observer that can no longer receive events.
var ErrObserverGone = errors.New("agent: observer disconnected")

// Observer receives the live event feed of an exchange. Send returns
// ErrObserverGone (possibly wrapped) once the observer stopped listening; any
// other error drops that one event.
type Observer interface {
	Send(Event) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event) error

func (f ObserverFunc) Send(ev Event) error { return f(ev) }

// ChannelObserver delivers events on a channel until done is closed.
type ChannelObserver struct {
	ch   chan<- Event
	done <-chan struct{}
}

// NewChannelObserver returns an observer writing to ch. Closing done
// disconnects it.
func NewChannelObserver(ch chan<- Event, done <-chan struct{}) *ChannelObserver {
	return &ChannelObserver{ch: ch, done: done}
}

func (o *ChannelObserver) Send(ev Event) error {
	select {
	case <-o.done:
		return ErrObserverGone
	default:
	}
	select {
	case o.ch <- ev:
		return nil
	case <-o.done:
		return ErrObserverGone
	}
}

// Broadcaster is the single ordered sink of an exchange's events. It stamps
// each event with the exchange id, round and a sequence number.
type Broadcaster struct {
	mu         sync.Mutex
	observer   Observer
	exchangeID string
	seq        uint64
	gone       bool
	terminated bool
	dropped    uint64
	lastErr    error
}

// NewBroadcaster returns a broadcaster forwarding to observer. A nil observer
// discards everything.
func NewBroadcaster(exchangeID string, observer Observer) *Broadcaster {
	return &Broadcaster{observer: observer, exchangeID: exchangeID}
}

// Forward sends one event. It reports false once the observer is gone; later
// calls are silent no-ops.
func (b *Broadcaster) Forward(round int, ev Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.forward(round, ev)
}

func (b *Broadcaster) forward(round int, ev Event) bool {
	if b.gone || b.terminated {
		return false
	}
	if b.observer == nil {
		return true
	}
	b.seq++
	ev.ExchangeID = b.exchangeID
	ev.Round = round
	ev.Seq = b.seq
	if err := b.observer.Send(ev); err != nil {
		if errors.Is(err, ErrObserverGone) {
			b.gone = true
			return false
		}
		b.dropped++
		b.lastErr = err
	}
	return true
}

// End sends stream_end unless a terminal event was already sent.
func (b *Broadcaster) End(round int) {
	b.terminate(round, StreamEnd())
}

// Fail sends stream_error unless a terminal event was already sent.
func (b *Broadcaster) Fail(round int, message string) {
	b.terminate(round, StreamError(message))
}

func (b *Broadcaster) terminate(round int, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.terminated {
		return
	}
	b.forward(round, ev)
	b.terminated = true
}

// Disconnected reports whether the observer stopped accepting events.
func (b *Broadcaster) Disconnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gone
}

// Dropped returns how many events the observer failed to take without
// disconnecting, and the last such error. Their sequence numbers are skipped.
func (b *Broadcaster) Dropped() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped, b.lastErr
}

// Sent returns the number of events stamped so far, dropped ones included.
func (b *Broadcaster) Sent() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}
