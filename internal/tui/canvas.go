// Package tui renders running worlds in the terminal: an interactive
// bubbletea watch view and a minimal ANSI streaming renderer.
package tui

import (
	"github.com/veloxphys/velox/internal/body"
	"github.com/veloxphys/velox/internal/shape"
	"github.com/veloxphys/velox/internal/world"
)

// viewport maps a fixed world-space window onto a rune canvas. The
// side view projects x to columns and y to rows.
type viewport struct {
	xMin, xMax float64
	yMin, yMax float64
	w, h       int
}

func defaultViewport(w, h int) viewport {
	return viewport{xMin: -8, xMax: 8, yMin: -1, yMax: 7, w: w, h: h}
}

func (v viewport) project(x, y float64) (int, int, bool) {
	if v.xMax <= v.xMin || v.yMax <= v.yMin {
		return 0, 0, false
	}
	px := int(float64(v.w-1) * (x - v.xMin) / (v.xMax - v.xMin))
	py := int(float64(v.h-1) * (v.yMax - y) / (v.yMax - v.yMin))
	if px < 0 || px >= v.w || py < 0 || py >= v.h {
		return 0, 0, false
	}
	return px, py, true
}

func newCanvas(w, h int) [][]rune {
	canvas := make([][]rune, h)
	for i := range canvas {
		canvas[i] = make([]rune, w)
		for j := range canvas[i] {
			canvas[i][j] = ' '
		}
	}
	return canvas
}

func set(canvas [][]rune, x, y int, c rune) {
	if y >= 0 && y < len(canvas) && x >= 0 && x < len(canvas[y]) {
		canvas[y][x] = c
	}
}

func glyphFor(s shape.Shape, sleeping bool) rune {
	if sleeping {
		return 'z'
	}
	switch s.Kind() {
	case shape.KindSphere:
		return 'o'
	case shape.KindBox:
		return '#'
	case shape.KindCapsule:
		return '|'
	default:
		return '*'
	}
}

// drawWorld projects every collider onto the canvas. Fixed bodies use
// a dim glyph so moving ones stand out.
func drawWorld(canvas [][]rune, v viewport, w *world.World) {
	for _, h := range w.BodyHandles() {
		b := w.Body(h)
		for _, ch := range b.Colliders {
			c := w.Collider(ch)
			if c == nil {
				continue
			}
			xf := c.WorldTransform(b.Transform)
			px, py, ok := v.project(xf.Position.X(), xf.Position.Y())
			if !ok {
				continue
			}
			switch {
			case b.Kind == body.Fixed:
				set(canvas, px, py, '=')
			default:
				set(canvas, px, py, glyphFor(c.Shape, b.Sleeping))
			}
		}
	}
}
