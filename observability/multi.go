package observability

import "context"

// MultiObserver forwards every event to a fixed set of observers, in
// registration order. Useful for logging to slog while also feeding a
// test recorder.
type MultiObserver struct {
	observers []Observer
}

// NewMultiObserver builds a MultiObserver over the non-nil observers.
func NewMultiObserver(observers ...Observer) *MultiObserver {
	kept := make([]Observer, 0, len(observers))
	for _, obs := range observers {
		if obs != nil {
			kept = append(kept, obs)
		}
	}
	return &MultiObserver{observers: kept}
}

func (m *MultiObserver) OnEvent(ctx context.Context, event Event) {
	for _, obs := range m.observers {
		obs.OnEvent(ctx, event)
	}
}
