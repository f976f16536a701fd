package tui

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/veloxphys/velox/internal/body"
	"github.com/veloxphys/velox/internal/config"
	"github.com/veloxphys/velox/internal/geom"
	"github.com/veloxphys/velox/internal/shape"
	"github.com/veloxphys/velox/internal/world"
)

func TestProjectCorners(t *testing.T) {
	v := defaultViewport(70, 20)

	tests := []struct {
		name   string
		x, y   float64
		px, py int
		ok     bool
	}{
		{"origin", 0, 0, 34, 16, true},
		{"top left", -8, 7, 0, 0, true},
		{"bottom right", 8, -1, 69, 19, true},
		{"left of window", -9, 0, 0, 0, false},
		{"above window", 0, 8, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			px, py, ok := v.project(tt.x, tt.y)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && (px != tt.px || py != tt.py) {
				t.Errorf("project = (%d, %d), want (%d, %d)", px, py, tt.px, tt.py)
			}
		})
	}
}

func TestGlyphForShapes(t *testing.T) {
	sphere, _ := shape.NewSphere(0.5)
	box, _ := shape.NewBox(mgl64.Vec3{0.5, 0.5, 0.5})
	capsule, _ := shape.NewCapsule(0.2, 0.5)

	tests := []struct {
		name     string
		s        shape.Shape
		sleeping bool
		want     rune
	}{
		{"sphere", sphere, false, 'o'},
		{"box", box, false, '#'},
		{"capsule", capsule, false, '|'},
		{"sleeping wins", sphere, true, 'z'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := glyphFor(tt.s, tt.sleeping); got != tt.want {
				t.Errorf("glyph = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDrawWorldPlacesBodies(t *testing.T) {
	w := world.New(config.DefaultStep())
	ball, _ := shape.NewSphere(0.5)
	slab, _ := shape.NewBox(mgl64.Vec3{4, 0.5, 4})

	ground := w.CreateBody(body.Fixed, geom.Transform{Position: mgl64.Vec3{0, -0.5, 0}, Orientation: mgl64.QuatIdent()})
	w.AttachCollider(ground, body.Collider{Shape: slab, Local: geom.Identity()})
	b := w.CreateBody(body.Dynamic, geom.Transform{Position: mgl64.Vec3{0, 3, 0}, Orientation: mgl64.QuatIdent()})
	w.AttachCollider(b, body.Collider{Shape: ball, Local: geom.Identity(), Density: 1})

	canvas := newCanvas(70, 20)
	drawWorld(canvas, defaultViewport(70, 20), w)

	var flat strings.Builder
	for _, row := range canvas {
		flat.WriteString(string(row))
	}
	if !strings.ContainsRune(flat.String(), 'o') {
		t.Error("dynamic sphere not drawn")
	}
	if !strings.ContainsRune(flat.String(), '=') {
		t.Error("fixed ground not drawn")
	}
}

func TestSparklineBounds(t *testing.T) {
	out := sparkline([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 8)
	if len([]rune(out)) != 8 {
		t.Fatalf("width = %d, want 8", len([]rune(out)))
	}
	runes := []rune(out)
	if runes[0] != '_' {
		t.Errorf("min sample = %q, want '_'", runes[0])
	}
	if runes[7] != '!' {
		t.Errorf("max sample = %q, want '!'", runes[7])
	}
	if sparkline(nil, 8) != "" {
		t.Error("empty data should produce empty sparkline")
	}
}
