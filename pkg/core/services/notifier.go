package services

import "github.com/jakechorley/blood-camps/pkg/core/model"

// Notifier receives committed domain events. Implementations must not block.
type Notifier interface {
	Notify(event model.Event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(model.Event) {}

func orNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
