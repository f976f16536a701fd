// Package export renders recorded body trajectories as SVG.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/veloxphys/velox/internal/arena"
	"github.com/veloxphys/velox/internal/body"
	"github.com/veloxphys/velox/internal/world"
)

type point struct{ X, Y float64 }

// Tracer records the XY path of every dynamic body it sees. It plugs
// into a run as an observer and is drained once with SVG.
type Tracer struct {
	paths map[arena.Handle][]point
}

func NewTracer() *Tracer {
	return &Tracer{paths: make(map[arena.Handle][]point)}
}

func (tr *Tracer) OnStep(w *world.World, t float64) {
	for _, h := range w.BodyHandles() {
		b := w.Body(h)
		if b == nil || b.Kind != body.Dynamic {
			continue
		}
		p := b.Transform.Position
		tr.paths[h] = append(tr.paths[h], point{X: p.X(), Y: p.Y()})
	}
}

var strokeColors = []string{"#00ff00", "#00c8ff", "#ffb000", "#ff5070", "#c080ff", "#80ffd0"}

// SVG draws every recorded path into one image. Bodies share a common
// coordinate frame so relative motion stays readable.
func (tr *Tracer) SVG(width, height int) string {
	handles := make([]arena.Handle, 0, len(tr.paths))
	for h := range tr.paths {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i].Less(handles[j]) })

	minX, maxX, minY, maxY := bounds(tr.paths)
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for i, h := range handles {
		pts := tr.paths[h]
		if len(pts) < 2 {
			continue
		}
		color := strokeColors[i%len(strokeColors)]
		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color))
		for j, p := range pts {
			x := (p.X - minX) / rangeX * float64(width)
			y := float64(height) - (p.Y-minY)/rangeY*float64(height)
			if j == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func bounds(paths map[arena.Handle][]point) (minX, maxX, minY, maxY float64) {
	first := true
	for _, pts := range paths {
		for _, p := range pts {
			if first {
				minX, maxX, minY, maxY = p.X, p.X, p.Y, p.Y
				first = false
				continue
			}
			if p.X < minX {
				minX = p.X
			}
			if p.X > maxX {
				maxX = p.X
			}
			if p.Y < minY {
				minY = p.Y
			}
			if p.Y > maxY {
				maxY = p.Y
			}
		}
	}
	if first {
		return 0, 1, 0, 1
	}
	return minX, maxX, minY, maxY
}
