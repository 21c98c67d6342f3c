/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package graffiti

import "math"

const (
	// baseRadius is the spray radius, in grid cells, before the cap
	// multiplier is applied.
	baseRadius = 1.0

	// reachFactor shrinks the radius to the part of the spray that claims
	// territory; the soft edge is paint only.
	reachFactor = 0.8

	maxSeen    = 1000
	seenEvict  = 500
	maxHistory = 5000
	keepRecent = 4000
)

// SprayRadius returns the radius in grid cells for a cap type.
func SprayRadius(c CanType) float64 {
	if c == CanFat {
		return baseRadius * FatRadiusMultiplier
	}
	return baseRadius * SkinnyRadiusMultiplier
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// SprayCells returns every grid cell whose centre lies within reach of the
// normalised point (x, y).
func SprayCells(x, y float64, c CanType) []Cell {
	radius := SprayRadius(c)
	reach := radius * reachFactor

	px := clamp01(x) * GridResolution
	py := clamp01(y) * GridResolution

	cx := int(math.Floor(px))
	cy := int(math.Floor(py))
	span := int(math.Ceil(radius))

	var cells []Cell
	for gx := cx - span; gx <= cx+span; gx++ {
		for gy := cy - span; gy <= cy+span; gy++ {
			if !inBounds(gx, gy) {
				continue
			}
			dx := float64(gx) + 0.5 - px
			dy := float64(gy) + 0.5 - py
			if math.Hypot(dx, dy) < reach {
				cells = append(cells, Cell{X: gx, Y: gy})
			}
		}
	}
	return cells
}

type sprayKey struct {
	player    string
	timestamp int64
}

// SprayLog replays spray events onto a grid at most once each. Both the
// seen-set and the replay history are bounded; the oldest entries go first.
//
// Painting is last-writer-wins per cell and events are not globally ordered,
// so two peers that saw the same sprays in a different order can disagree on
// a few contested cells. Nothing reconciles them.
type SprayLog struct {
	seen    map[sprayKey]struct{}
	order   []sprayKey
	history []SprayEvent
}

func NewSprayLog() *SprayLog {
	return &SprayLog{seen: make(map[sprayKey]struct{})}
}

func (l *SprayLog) Seen(ev SprayEvent) bool {
	_, ok := l.seen[sprayKey{ev.PlayerID, ev.Timestamp}]
	return ok
}

// Apply paints ev onto grid unless it was applied before. It reports the
// touched cells and whether the event was new. A nil grid records the event
// without painting.
func (l *SprayLog) Apply(grid *Grid, ev SprayEvent) ([]Cell, bool) {
	key := sprayKey{ev.PlayerID, ev.Timestamp}
	if _, ok := l.seen[key]; ok {
		return nil, false
	}

	l.seen[key] = struct{}{}
	l.order = append(l.order, key)
	if len(l.order) > maxSeen {
		for _, old := range l.order[:seenEvict] {
			delete(l.seen, old)
		}
		l.order = append([]sprayKey(nil), l.order[seenEvict:]...)
	}

	l.history = append(l.history, ev)
	if len(l.history) > maxHistory {
		l.history = append([]SprayEvent(nil), l.history[len(l.history)-keepRecent:]...)
	}

	cells := SprayCells(ev.X, ev.Y, ev.CanType)
	if grid != nil {
		for _, c := range cells {
			grid.Set(c.X, c.Y, ev.TeamID)
		}
	}

	return cells, true
}

// History returns the applied events, oldest first, for repainting a wall.
func (l *SprayLog) History() []SprayEvent {
	return append([]SprayEvent(nil), l.history...)
}

func (l *SprayLog) Len() int {
	return len(l.seen)
}

func (l *SprayLog) Reset() {
	clear(l.seen)
	l.order = nil
	l.history = nil
}
