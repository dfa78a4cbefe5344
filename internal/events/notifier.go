package events

import "errors"

// Notifier delivers events to subscribers. Implementations must not block
// on slow consumers; the engine calls Publish outside its critical sections
// and treats errors as log-and-continue.
type Notifier interface {
	Publish(Event) error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(Event) error { return nil }

// Fanout publishes to every wrapped notifier and joins their errors. One
// sink failing does not stop delivery to the others.
type Fanout []Notifier

func (f Fanout) Publish(e Event) error {
	var errs []error
	for _, n := range f {
		if err := n.Publish(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
