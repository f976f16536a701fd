package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/veloxphys/velox/internal/world"
)

const (
	liveWidth   = 70
	liveHeight  = 20
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// LiveRenderer streams frames to stdout while a run is in progress.
// It implements the runner's Observer interface.
type LiveRenderer struct {
	scenario  string
	frameRate int
	lastFrame time.Time
}

func NewLiveRenderer(scenario string, frameRate int) *LiveRenderer {
	if frameRate < 1 {
		frameRate = 30
	}
	return &LiveRenderer{scenario: scenario, frameRate: frameRate}
}

func (r *LiveRenderer) OnStep(w *world.World, t float64) {
	if time.Since(r.lastFrame) < time.Second/time.Duration(r.frameRate) {
		return
	}
	r.lastFrame = time.Now()

	canvas := newCanvas(liveWidth, liveHeight)
	drawWorld(canvas, defaultViewport(liveWidth, liveHeight), w)

	var b strings.Builder
	b.WriteString(clearScreen)
	fmt.Fprintf(&b, "  %s  t=%.2fs  bodies=%d  contacts=%d\n",
		r.scenario, t, w.BodyCount(), w.TouchingContacts())
	b.WriteString("  " + strings.Repeat("-", liveWidth) + "\n")
	for _, row := range canvas {
		b.WriteString("  ")
		b.WriteString(string(row))
		b.WriteString("\n")
	}
	b.WriteString("  " + strings.Repeat("-", liveWidth) + "\n")
	fmt.Print(b.String())
}

func (r *LiveRenderer) Start() { fmt.Print(hideCursor) }
func (r *LiveRenderer) Stop()  { fmt.Print(showCursor) }
