package state

import (
	"math"
	"time"
)

// EtaWindowCapacity is the number of progress points the rate window keeps.
const EtaWindowCapacity = 10

type progressPoint struct {
	at        time.Time
	completed int
}

// EtaCalculator estimates time remaining from a rolling completion rate.
type EtaCalculator struct {
	start  time.Time
	window *Ring[progressPoint]
}

// NewEtaCalculator creates a calculator for a run that started at start.
func NewEtaCalculator(start time.Time) *EtaCalculator {
	return &EtaCalculator{
		start:  start,
		window: NewRing[progressPoint](EtaWindowCapacity),
	}
}

// Record adds a progress point.
func (e *EtaCalculator) Record(at time.Time, completed int) {
	e.window.Push(progressPoint{at: at, completed: completed})
}

// Estimate returns the remaining time, or false when no estimate exists:
// total unknown, nothing completed yet, already done, or no positive rate.
// With fewer than two points the rate is completed over time since start;
// otherwise it is measured between the oldest and newest point in the window.
func (e *EtaCalculator) Estimate(now time.Time, completed int, total *int) (time.Duration, bool) {
	if total == nil || completed <= 0 || completed >= *total {
		return 0, false
	}

	var rate float64
	if e.window.Len() < 2 {
		elapsed := now.Sub(e.start).Seconds()
		if elapsed <= 0 {
			return 0, false
		}
		rate = float64(completed) / elapsed
	} else {
		oldest := e.window.At(0)
		newest := e.window.At(e.window.Len() - 1)
		dt := newest.at.Sub(oldest.at).Seconds()
		if dt <= 0 {
			return 0, false
		}
		rate = float64(newest.completed-oldest.completed) / dt
	}

	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return 0, false
	}
	remaining := float64(*total-completed) / rate
	return time.Duration(remaining * float64(time.Second)), true
}
