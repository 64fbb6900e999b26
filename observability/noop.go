package observability

import "context"

// NoOpObserver drops events on the floor. It is the default for every
// subsystem constructed without an explicit observer.
type NoOpObserver struct{}

func (NoOpObserver) OnEvent(context.Context, Event) {}
