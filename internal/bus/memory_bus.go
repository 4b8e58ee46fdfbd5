// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package bus provides the in-process pub/sub used for lifecycle
// notifications. It is not durable and provides at-least-once in-process
// delivery while publish contexts remain active.
package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ManuGH/focusd/internal/domain/session/ports"
	"github.com/ManuGH/focusd/internal/log"
	"github.com/ManuGH/focusd/internal/metrics"
)

// MemoryBus is an in-memory implementation of ports.Bus.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string][]chan interface{}
}

const dropLogEvery = 100

var dropCount atomic.Uint64

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]chan interface{})}
}

func publishDropReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "context_done"
	}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, event interface{}) error {
	if ctx == nil {
		return fmt.Errorf("publish context is nil")
	}
	b.mu.RLock()
	chs := append([]chan interface{}(nil), b.subs[topic]...)
	b.mu.RUnlock()
	for _, ch := range chs {
		select {
		case ch <- event:
		case <-ctx.Done():
			reason := publishDropReason(ctx.Err())
			metrics.IncBusDropReason(topic, reason)
			count := dropCount.Add(1)
			if count%dropLogEvery == 0 {
				lg := log.WithComponent("bus")
				lg.Warn().
					Str("topic", topic).
					Str("reason", reason).
					Uint64("dropped", count).
					Msg("memory bus failed to publish due to context cancellation")
			}
			return fmt.Errorf("publish topic %q: %w", topic, ctx.Err())
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, topic string) (ports.Subscription, error) {
	ch := make(chan interface{}, 64)

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], ch)
	b.mu.Unlock()

	return &memSub{b: b, topic: topic, ch: ch}, nil
}

type memSub struct {
	b     *MemoryBus
	topic string
	ch    chan interface{}
}

func (s *memSub) C() <-chan interface{} {
	return s.ch
}

func (s *memSub) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	lst := s.b.subs[s.topic]
	out := lst[:0]
	for _, c := range lst {
		if c != s.ch {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		delete(s.b.subs, s.topic)
	} else {
		s.b.subs[s.topic] = out
	}
	close(s.ch) // Signal subscriber to stop
	return nil
}

// Ensure compliance
var _ ports.Bus = (*MemoryBus)(nil)
