package timectrl

import (
	"context"
	"sync"
	"time"
)

// StepClock gives read access to the current simulation step so
// consumers can depend on an abstraction rather than the controller.
type StepClock interface {
	CurrentStep() float64
}

// Mode describes how the StepController advances simulation steps.
type Mode int

const (
	// RealTime advances one step per Interval of wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the listeners allow.
	Accelerated
)

// DefaultInterval is used in RealTime mode when no interval is given.
const DefaultInterval = time.Second

// StepController drives the simulation time step and notifies registered
// listeners. It implements StepClock.
type StepController struct {
	mu       sync.RWMutex
	Origin   float64
	Stride   float64
	Interval time.Duration
	Mode     Mode

	current   float64
	listeners []func(step float64)
}

// NewStepController constructs a controller positioned at start that
// advances by one step per tick.
func NewStepController(start float64, interval time.Duration, mode Mode) *StepController {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &StepController{
		Origin:   start,
		Stride:   1,
		Interval: interval,
		Mode:     mode,
		current:  start,
	}
}

// CurrentStep returns the most recently reached step. Implements StepClock.
func (sc *StepController) CurrentStep() float64 {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.current
}

// SetStep jumps to step without notifying listeners.
func (sc *StepController) SetStep(step float64) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.current = step
}

// Reset returns to the step the controller was created at.
func (sc *StepController) Reset() {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.current = sc.Origin
}

// AddListener registers a callback invoked on every tick with the new step.
func (sc *StepController) AddListener(fn func(step float64)) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.listeners = append(sc.listeners, fn)
}

// Start advances ticks steps beyond the current one in a separate
// goroutine, invoking listeners after each advance. ticks <= 0 runs until
// ctx is done. The returned channel is closed when the controller stops.
func (sc *StepController) Start(ctx context.Context, ticks int) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var tickC <-chan time.Time
		if sc.Mode == RealTime {
			ticker := time.NewTicker(sc.Interval)
			defer ticker.Stop()
			tickC = ticker.C
		}

		for n := 0; ticks <= 0 || n < ticks; n++ {
			if tickC != nil {
				select {
				case <-ctx.Done():
					return
				case <-tickC:
				}
			} else if ctx.Err() != nil {
				return
			}

			sc.mu.Lock()
			stride := sc.Stride
			if stride == 0 {
				stride = 1
			}
			sc.current += stride
			step := sc.current
			listeners := append([]func(float64){}, sc.listeners...)
			sc.mu.Unlock()

			for _, fn := range listeners {
				fn(step)
			}
		}
	}()
	return done
}
