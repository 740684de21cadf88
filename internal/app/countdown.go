package app

import (
	"sync"
	"sync/atomic"
	"time"
)

// Countdown ticks a second budget down to zero and fires once when it runs out.
type Countdown struct {
	remaining atomic.Int64
	tick      time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewCountdown creates a stopped countdown. tick is the wall-clock length of one second.
func NewCountdown(seconds int, tick time.Duration) *Countdown {
	if tick <= 0 {
		tick = time.Second
	}
	c := &Countdown{
		tick: tick,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	c.remaining.Store(int64(max(seconds, 0)))
	return c
}

// Start launches the ticking goroutine. onExpire runs on it at most once and is
// skipped when Stop got there first.
func (c *Countdown) Start(onExpire func()) {
	c.startOnce.Do(func() {
		go c.run(onExpire)
	})
}

func (c *Countdown) run(onExpire func()) {
	defer close(c.done)

	if c.remaining.Load() > 0 {
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()
	loop:
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				if c.remaining.Add(-1) <= 0 {
					c.remaining.Store(0)
					break loop
				}
			}
		}
	}

	select {
	case <-c.stop:
		return
	default:
	}
	if onExpire != nil {
		onExpire()
	}
}

// Remaining is the number of seconds left.
func (c *Countdown) Remaining() int {
	return int(c.remaining.Load())
}

// Stop tears the countdown down. It is safe to call more than once.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Done is closed once the goroutine launched by Start has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}
