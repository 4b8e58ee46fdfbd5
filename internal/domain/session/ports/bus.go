// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package ports

import "context"

// Bus defines the interface for the event bus the engine publishes
// lifecycle notifications on.
type Bus interface {
	Publish(ctx context.Context, topic string, event interface{}) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

type Subscription interface {
	C() <-chan interface{}
	Close() error
}
