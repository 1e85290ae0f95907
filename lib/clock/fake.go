// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a FakeClock frozen at initial. Time moves only when
// Advance is called.
func Fake(initial time.Time) *FakeClock {
	clock := &FakeClock{now: initial}
	clock.changed = sync.NewCond(&clock.mu)
	return clock
}

// FakeClock is a deterministic Clock for tests. AfterFunc callbacks run
// synchronously inside Advance, in deadline order; a callback must not
// call Advance itself.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	pending []*fakeTimer
	changed *sync.Cond
}

type fakeTimer struct {
	deadline time.Time
	interval time.Duration // non-zero for tickers
	channel  chan time.Time
	callback func()
	active   bool
}

// Now returns the fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives once the clock has advanced by
// d. Non-positive durations fire immediately.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	channel := make(chan time.Time, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if d <= 0 {
		channel <- c.now
		return channel
	}
	c.scheduleLocked(&fakeTimer{deadline: c.now.Add(d), channel: channel, active: true})
	return channel
}

// AfterFunc schedules f to run during the Advance that crosses d.
// Non-positive durations run f before returning.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	timer := &fakeTimer{callback: f}
	if d <= 0 {
		f()
	} else {
		c.mu.Lock()
		timer.deadline = c.now.Add(d)
		timer.active = true
		c.scheduleLocked(timer)
		c.mu.Unlock()
	}
	return &Timer{
		stop: func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := timer.active
			c.unscheduleLocked(timer)
			return wasActive
		},
		reset: func(d time.Duration) bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			wasActive := timer.active
			c.unscheduleLocked(timer)
			timer.deadline = c.now.Add(d)
			timer.active = true
			c.scheduleLocked(timer)
			return wasActive
		},
	}
}

// NewTicker returns a ticker firing every d of fake time.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	channel := make(chan time.Time, 1)
	timer := &fakeTimer{interval: d, channel: channel, active: true}
	c.mu.Lock()
	timer.deadline = c.now.Add(d)
	c.scheduleLocked(timer)
	c.mu.Unlock()
	return &Ticker{
		C: channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.unscheduleLocked(timer)
		},
	}
}

// Advance moves the clock forward by d, firing every timer whose
// deadline is reached. Tickers fire once per elapsed interval; ticks
// that find the channel full are dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		due := c.popDue(target)
		if due == nil {
			return
		}
		if due.callback != nil {
			due.callback()
			continue
		}
		select {
		case due.channel <- due.deadline:
		default:
		}
	}
}

// popDue removes and returns the earliest timer due at or before
// target, rescheduling tickers. Returns nil when nothing is due.
func (c *FakeClock) popDue(target time.Time) *fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 || c.pending[0].deadline.After(target) {
		return nil
	}
	due := c.pending[0]
	c.pending = c.pending[1:]
	if due.interval > 0 {
		fired := *due
		due.deadline = due.deadline.Add(due.interval)
		c.insertSortedLocked(due)
		return &fired
	}
	due.active = false
	return due
}

// WaitForTimers blocks until at least n timers or tickers are pending.
// Call it before Advance when the timer is registered by another
// goroutine.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.pending) < n {
		c.changed.Wait()
	}
}

// PendingCount returns the number of pending timers and tickers.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *FakeClock) scheduleLocked(timer *fakeTimer) {
	c.insertSortedLocked(timer)
	c.changed.Broadcast()
}

func (c *FakeClock) insertSortedLocked(timer *fakeTimer) {
	index := sort.Search(len(c.pending), func(i int) bool {
		return c.pending[i].deadline.After(timer.deadline)
	})
	c.pending = append(c.pending, nil)
	copy(c.pending[index+1:], c.pending[index:])
	c.pending[index] = timer
}

func (c *FakeClock) unscheduleLocked(timer *fakeTimer) {
	timer.active = false
	for i, pending := range c.pending {
		if pending == timer {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}
