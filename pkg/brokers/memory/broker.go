// Package memory is an in-process transport with consumer-group semantics:
// every group sees every message, keeps its own offset and only moves past a
// message once its handler succeeded.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tumbleweedd/eshop_saga/pkg/brokers"
)

const retryBackoff = 50 * time.Millisecond

var ErrNotDrained = errors.New("messages still pending after drain")

type group struct {
	offset int
	handle brokers.HandleFunc
	busy   sync.Mutex
}

type Broker struct {
	mu        sync.Mutex
	log       []brokers.Message
	groups    map[string]*group
	published chan struct{}
	closed    bool
}

func NewBroker() *Broker {
	return &Broker{
		groups:    make(map[string]*group),
		published: make(chan struct{}),
	}
}

func (b *Broker) Publish(ctx context.Context, msg brokers.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return brokers.ErrClosed
	}

	msg.Payload = append([]byte(nil), msg.Payload...)
	b.log = append(b.log, msg)

	close(b.published)
	b.published = make(chan struct{})

	return nil
}

// Register attaches a handler to a consumer group without starting a
// delivery loop; Drain then delivers synchronously.
func (b *Broker) Register(groupName string, handle brokers.HandleFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	g, ok := b.groups[groupName]
	if !ok {
		g = &group{}
		b.groups[groupName] = g
	}
	g.handle = handle
}

// Consume delivers in the background until ctx is done. A failed message is
// retried after a short backoff before anything behind it is delivered.
func (b *Broker) Consume(ctx context.Context, groupName string, handle brokers.HandleFunc) error {
	b.Register(groupName, handle)

	for {
		b.mu.Lock()
		wait := b.published
		b.mu.Unlock()

		delivered, err := b.deliver(ctx, groupName)

		var retry <-chan time.Time
		if err != nil {
			retry = time.After(retryBackoff)
		} else if delivered > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-wait:
		case <-retry:
		}
	}
}

// Drain delivers until every registered group has caught up, including
// messages published by the handlers themselves. It returns the first
// handler error.
func (b *Broker) Drain(ctx context.Context) error {
	const maxRounds = 1000

	for round := 0; round < maxRounds; round++ {
		total := 0
		for _, name := range b.groupNames() {
			delivered, err := b.deliver(ctx, name)
			if err != nil {
				return fmt.Errorf("group %s: %w", name, err)
			}
			total += delivered
		}

		if total == 0 {
			return nil
		}
	}

	return ErrNotDrained
}

// Published returns a copy of everything published so far, in order.
func (b *Broker) Published() []brokers.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]brokers.Message(nil), b.log...)
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	return nil
}

func (b *Broker) groupNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.groups))
	for name := range b.groups {
		names = append(names, name)
	}
	return names
}

func (b *Broker) deliver(ctx context.Context, groupName string) (int, error) {
	b.mu.Lock()
	g := b.groups[groupName]
	b.mu.Unlock()

	if g == nil || g.handle == nil {
		return 0, nil
	}

	g.busy.Lock()
	defer g.busy.Unlock()

	delivered := 0
	for {
		b.mu.Lock()
		if g.offset >= len(b.log) {
			b.mu.Unlock()
			return delivered, nil
		}
		msg := b.log[g.offset]
		b.mu.Unlock()

		if err := g.handle(ctx, msg); err != nil {
			return delivered, err
		}

		g.offset++
		delivered++
	}
}
