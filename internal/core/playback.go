package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/valter-silva-au/recall-review/pkg/models"
)

// SkipStep is the jump applied by the skip-back and skip-forward controls.
const SkipStep = 10 * time.Second

// durationTail pads an estimated duration past the last annotation.
const durationTail = 5 * time.Second

// SeekController is anything that can jump to an audio position.
type SeekController interface {
	SeekTo(positionMs int64)
}

// SeekFunc adapts a function to SeekController.
type SeekFunc func(positionMs int64)

// SeekTo calls f.
func (f SeekFunc) SeekTo(positionMs int64) { f(positionMs) }

// SeekBus fans a seek request out to every registered controller. The
// report view owns one and hands it to both the player and the annotation
// list, so a click on an annotation moves the playhead and starts audio.
type SeekBus struct {
	mu          sync.Mutex
	controllers []SeekController
}

// Register adds c to the bus.
func (b *SeekBus) Register(c SeekController) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.controllers = append(b.controllers, c)
}

// SeekTo forwards the position to every registered controller.
func (b *SeekBus) SeekTo(positionMs int64) {
	b.mu.Lock()
	cs := make([]SeekController, len(b.controllers))
	copy(cs, b.controllers)
	b.mu.Unlock()

	for _, c := range cs {
		c.SeekTo(positionMs)
	}
}

// SeekToAnnotation seeks to the start of a.
func (b *SeekBus) SeekToAnnotation(a models.Annotation) {
	b.SeekTo(a.StartTime)
}

// Playhead tracks the playback position of one report's audio.
type Playhead struct {
	Position time.Duration
	Duration time.Duration
	Playing  bool
}

// NewPlayhead creates a stopped playhead at zero. Duration is estimated from
// the annotations since the audio itself is never decoded.
func NewPlayhead(r *models.Report) *Playhead {
	return &Playhead{Duration: EstimateDuration(r)}
}

// EstimateDuration returns the latest annotation end plus a short tail.
func EstimateDuration(r *models.Report) time.Duration {
	if r == nil {
		return 0
	}
	var last int64
	for _, a := range r.Annotations {
		if a.EndTime > last {
			last = a.EndTime
		}
	}
	if last == 0 {
		return 0
	}
	return time.Duration(last)*time.Millisecond + durationTail
}

// SeekTo moves to positionMs and starts playback.
func (p *Playhead) SeekTo(positionMs int64) {
	p.Position = p.clamp(time.Duration(positionMs) * time.Millisecond)
	p.Playing = true
}

// SeekRelative moves by d, clamped to the audio bounds.
func (p *Playhead) SeekRelative(d time.Duration) {
	p.Position = p.clamp(p.Position + d)
}

// Toggle flips between playing and paused.
func (p *Playhead) Toggle() {
	p.Playing = !p.Playing
}

// Advance moves a playing playhead forward by elapsed, stopping at the end.
func (p *Playhead) Advance(elapsed time.Duration) {
	if !p.Playing {
		return
	}
	p.Position = p.clamp(p.Position + elapsed)
	if p.Duration > 0 && p.Position >= p.Duration {
		p.Playing = false
	}
}

// PositionMs returns the position in milliseconds.
func (p *Playhead) PositionMs() int64 {
	return p.Position.Milliseconds()
}

func (p *Playhead) clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if p.Duration > 0 && d > p.Duration {
		return p.Duration
	}
	return d
}

// FormatClock renders d as m:ss.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// FormatMs renders a millisecond offset as m:ss.
func FormatMs(ms int64) string {
	return FormatClock(time.Duration(ms) * time.Millisecond)
}
