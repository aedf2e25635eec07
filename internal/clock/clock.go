package clock

import (
	"fmt"
	"time"

	"github.com/park285/cheese-board-client/internal/board"
)

// Snapshot is the last authoritative clock reading.
type Snapshot struct {
	WhiteMs    int64
	BlackMs    int64
	ToMove     board.Color
	ObservedAt time.Time
}

// Model interpolates the side-to-move's clock between authoritative updates.
// Only the side to move loses time; the other side is frozen at its last value.
type Model struct {
	snap  Snapshot
	known bool
	now   func() time.Time
}

func New(now func() time.Time) *Model {
	if now == nil {
		now = time.Now
	}
	return &Model{now: now}
}

// OnAuthoritative replaces the snapshot wholesale and stamps it with the current time.
func (m *Model) OnAuthoritative(whiteMs, blackMs int64, toMove board.Color) {
	m.snap = Snapshot{WhiteMs: whiteMs, BlackMs: blackMs, ToMove: toMove, ObservedAt: m.now()}
	m.known = true
}

// Same reports whether the given reading equals the current snapshot.
func (m *Model) Same(whiteMs, blackMs int64, toMove board.Color) bool {
	return m.known && m.snap.WhiteMs == whiteMs && m.snap.BlackMs == blackMs && m.snap.ToMove == toMove
}

func (m *Model) Known() bool { return m.known }

func (m *Model) Snapshot() Snapshot { return m.snap }

func (m *Model) Reset() {
	m.snap = Snapshot{}
	m.known = false
}

func (m *Model) Now() time.Time { return m.now() }

// DisplayedRemaining returns the time left for side at now, clamped to zero.
func (m *Model) DisplayedRemaining(side board.Color, now time.Time) time.Duration {
	if !m.known {
		return 0
	}
	ms := m.snap.WhiteMs
	if side == board.Black {
		ms = m.snap.BlackMs
	}
	left := time.Duration(ms) * time.Millisecond
	if side == m.snap.ToMove {
		if elapsed := now.Sub(m.snap.ObservedAt); elapsed > 0 {
			left -= elapsed
		}
	}
	if left < 0 {
		return 0
	}
	return left
}

// Format renders d as m:ss, rounding partial seconds down.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

// Unknown is what Format shows before any clock reading arrives.
const Unknown = "--:--"

// LowTime reports whether d is under threshold. A zero threshold disables it.
func LowTime(d, threshold time.Duration) bool {
	return threshold > 0 && d < threshold
}
