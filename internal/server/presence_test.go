package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aspirewithalina/chatserver/internal/testutil"
)

func newTestRegistry(t *testing.T) *PresenceRegistry {
	return NewPresenceRegistry(testutil.TestLogger(t), nil)
}

func TestPresenceRegisterAndLookup(t *testing.T) {
	p := newTestRegistry(t)
	c := &Client{send: make(chan *ServerMessage, 1)}

	_, ok := p.Lookup("alice")
	assert.False(t, ok, "expected no handle before registration")

	p.Register("alice", c)
	got, ok := p.Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, c, got)
}

func TestPresenceLastWriteWins(t *testing.T) {
	p := newTestRegistry(t)
	old := &Client{send: make(chan *ServerMessage, 1)}
	newer := &Client{send: make(chan *ServerMessage, 1)}

	p.Register("alice", old)
	p.Register("alice", newer)

	got, ok := p.Lookup("alice")
	assert.True(t, ok)
	assert.Same(t, newer, got, "expected the later registration to supersede the earlier one")
}

func TestPresenceClear(t *testing.T) {
	t.Run("clears own handle", func(t *testing.T) {
		p := newTestRegistry(t)
		c := &Client{send: make(chan *ServerMessage, 1)}
		p.Register("alice", c)

		assert.True(t, p.Clear("alice", c))
		_, ok := p.Lookup("alice")
		assert.False(t, ok)
	})

	t.Run("stale clear does not evict a newer handle", func(t *testing.T) {
		p := newTestRegistry(t)
		old := &Client{send: make(chan *ServerMessage, 1)}
		newer := &Client{send: make(chan *ServerMessage, 1)}
		p.Register("alice", old)
		p.Register("alice", newer)

		assert.False(t, p.Clear("alice", old), "expected the superseded connection's clear to be a no-op")
		got, ok := p.Lookup("alice")
		assert.True(t, ok)
		assert.Same(t, newer, got)
	})

	t.Run("clear of unknown identity", func(t *testing.T) {
		p := newTestRegistry(t)
		c := &Client{send: make(chan *ServerMessage, 1)}
		assert.False(t, p.Clear("ghost", c))
	})
}

func TestPresenceOnline(t *testing.T) {
	p := newTestRegistry(t)
	p.Register("bob", &Client{})
	p.Register("alice", &Client{})

	assert.Equal(t, []string{"alice", "bob"}, p.Online(), "expected a sorted snapshot")
}
