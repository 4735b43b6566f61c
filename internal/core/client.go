package core

import (
	"context"
	"sync"
)

// State is the lifecycle position of a connection.
type State int32

const (
	// StateUnauthenticated is the state before a successful join.
	StateUnauthenticated State = iota
	// StateActive means the connection is bound to a user.
	StateActive
	// StateClosed means the disconnect transition has completed.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is a live connection as seen by the core layer.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	mu     sync.RWMutex
	user   string
	state  State
	cancel context.CancelFunc

	quit      chan struct{}
	quitOnce  sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 8
	}
	return &Client{
		ID:       id,
		Commands: make(chan *Command, buffer),
		Events:   make(chan *Event, buffer),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// User returns the identity bound by the last successful join.
func (c *Client) User() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Submit queues a command unless ctx ends or the client is gone first.
func (c *Client) Submit(ctx context.Context, cmd *Command) bool {
	select {
	case c.Commands <- cmd:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Close asks the router to run the disconnect transition.
func (c *Client) Close() {
	c.quitOnce.Do(func() {
		close(c.quit)
		c.mu.RLock()
		cancel := c.cancel
		c.mu.RUnlock()
		if cancel != nil {
			cancel()
		}
	})
}

// Done is closed once the disconnect transition has completed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) setCancel(cancel context.CancelFunc) {
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
}

func (c *Client) activate(user string) {
	c.mu.Lock()
	c.user = user
	c.state = StateActive
	c.mu.Unlock()
}

func (c *Client) deactivate() {
	c.mu.Lock()
	c.user = ""
	c.state = StateUnauthenticated
	c.mu.Unlock()
}

func (c *Client) markClosed() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()
		close(c.done)
	})
}

// deliver hands an event to the client without blocking. Events for a
// closed or slow client are dropped.
func (c *Client) deliver(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}
