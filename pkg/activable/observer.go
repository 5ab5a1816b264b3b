package activable

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Phase identifies a point of the removal protocol.
type Phase string

const (
	PhaseBeforeRemoval Phase = "before_removal"
	PhaseAfterRemoval  Phase = "after_removal"
)

// Event is delivered to observers around a removal. The before and after
// notifications of one removal share the same ID.
type Event struct {
	At     time.Time
	Entity Removable
	Key    any
	Phase  Phase
	Table  string
	ID     uuid.UUID
}

// Observer is a loosely-coupled listener of removals. Observers cannot veto:
// a panicking observer is logged and the removal continues.
type Observer interface {
	ObserveRemoval(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

// ObserveRemoval calls f(ctx, ev).
func (f ObserverFunc) ObserveRemoval(ctx context.Context, ev Event) { f(ctx, ev) }

// LogObserver returns an observer writing every event to logger at debug level.
func LogObserver(logger zerolog.Logger) Observer {
	return ObserverFunc(func(_ context.Context, ev Event) {
		logger.Debug().
			Str("event", ev.ID.String()).
			Str("phase", string(ev.Phase)).
			Str("table", ev.Table).
			Interface("key", ev.Key).
			Time("at", ev.At).
			Msg("Removal event")
	})
}

type observerList struct {
	logger    zerolog.Logger
	observers []Observer
	mu        sync.RWMutex
}

func (l *observerList) add(o Observer) {
	l.mu.Lock()
	l.observers = append(l.observers, o)
	l.mu.Unlock()
}

func (l *observerList) notify(ctx context.Context, ev Event) {
	l.mu.RLock()
	observers := append([]Observer(nil), l.observers...)
	l.mu.RUnlock()

	for _, o := range observers {
		l.deliver(ctx, o, ev)
	}
}

func (l *observerList) deliver(ctx context.Context, o Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error().
				Interface("panic", r).
				Str("phase", string(ev.Phase)).
				Str("table", ev.Table).
				Msg("Removal observer panicked")
		}
	}()
	o.ObserveRemoval(ctx, ev)
}
