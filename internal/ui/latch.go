package ui

import "github.com/kalambet/gallery/internal/navigation"

// Terminals report key presses and repeats but never releases, so a held
// movement key is modelled as pressed until holdFor seconds of frame time
// pass without another repeat.
const holdFor = 0.35

type control int

const (
	ctrlForward control = iota
	ctrlBackward
	ctrlLeft
	ctrlRight
	numControls
)

type holdLatch struct {
	until [numControls]float64
}

func opposite(c control) control {
	switch c {
	case ctrlForward:
		return ctrlBackward
	case ctrlBackward:
		return ctrlForward
	case ctrlLeft:
		return ctrlRight
	default:
		return ctrlLeft
	}
}

// press marks c held at time now. The opposite control is released.
func (l *holdLatch) press(c control, now float64) {
	l.until[c] = now + holdFor
	l.until[opposite(c)] = 0
}

func (l *holdLatch) release() {
	l.until = [numControls]float64{}
}

func (l *holdLatch) keys(now float64) navigation.Keys {
	return navigation.Keys{
		Forward:   l.until[ctrlForward] > now,
		Backward:  l.until[ctrlBackward] > now,
		TurnLeft:  l.until[ctrlLeft] > now,
		TurnRight: l.until[ctrlRight] > now,
	}
}
