package portals

import (
	"time"
)

const DefaultFixedDt = time.Second / 60

// maxFixedStepsPerFrame bounds catch-up after a long stall.
const maxFixedStepsPerFrame = 8

type Time struct {
	Time    time.Time
	Dt      time.Duration
	FixedDt time.Duration
	Frame   uint64
	// FixedFrame counts completed fixed-step passes.
	FixedFrame uint64

	accumulator time.Duration
	stepsTaken  int
}

type TimeModule struct {
	FixedDt time.Duration
}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	fixed := mod.FixedDt
	if fixed <= 0 {
		fixed = DefaultFixedDt
	}
	cmd.AddResources(&Time{
		Time:    time.Now(),
		FixedDt: fixed,
	})
}

func (t *Time) advance(dt time.Duration) {
	t.Dt = dt
	t.Time = t.Time.Add(dt)
	t.accumulator += dt
	t.stepsTaken = 0
}

func (t *Time) consumeFixedStep() bool {
	if t.accumulator < t.FixedDt || t.stepsTaken >= maxFixedStepsPerFrame {
		if t.stepsTaken >= maxFixedStepsPerFrame {
			t.accumulator = 0
		}
		return false
	}
	t.accumulator -= t.FixedDt
	t.stepsTaken++
	t.FixedFrame++
	return true
}

// Alpha is the fraction of a fixed step left in the accumulator.
func (t *Time) Alpha() float32 {
	if t.FixedDt <= 0 {
		return 0
	}
	return float32(t.accumulator) / float32(t.FixedDt)
}
