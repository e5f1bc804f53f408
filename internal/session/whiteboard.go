package session

import (
	"math"
	"sync"

	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

// cell is one quantized canvas coordinate.
type cell struct {
	X, Y int
}

// Whiteboard replays stroke increments onto a shared canvas model. Every
// client applies the same compositing rule, so the same ordered
// increment stream reproduces the same visual state everywhere: draw
// paints the brush stamp, erase clears it.
type Whiteboard struct {
	mu      sync.Mutex
	strokes []protocol.WhiteboardStroke
	canvas  map[cell]string
}

func NewWhiteboard() *Whiteboard {
	return &Whiteboard{canvas: make(map[cell]string)}
}

// Compose records a local stroke increment (optimistic echo) and
// returns it for emission.
func (w *Whiteboard) Compose(x, y float64, color string, width float64, mode string) protocol.WhiteboardStroke {
	stroke := protocol.WhiteboardStroke{X: x, Y: y, Color: color, Width: width, Mode: mode}
	w.Apply(stroke)
	return stroke
}

// Apply composites one increment onto the canvas.
func (w *Whiteboard) Apply(stroke protocol.WhiteboardStroke) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.strokes = append(w.strokes, stroke)

	radius := int(math.Floor(stroke.Width / 2))
	cx, cy := int(math.Round(stroke.X)), int(math.Round(stroke.Y))
	for dx := -radius; dx <= radius; dx++ {
		for dy := -radius; dy <= radius; dy++ {
			c := cell{X: cx + dx, Y: cy + dy}
			if stroke.Mode == protocol.StrokeModeErase {
				delete(w.canvas, c)
			} else {
				w.canvas[c] = stroke.Color
			}
		}
	}
}

// Clear wipes the canvas and the stroke history.
func (w *Whiteboard) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.strokes = nil
	w.canvas = make(map[cell]string)
}

// Bootstrap rebuilds the board from the server's session backlog.
func (w *Whiteboard) Bootstrap(backlog []protocol.WhiteboardStroke) {
	w.Clear()
	for _, stroke := range backlog {
		w.Apply(stroke)
	}
}

// Strokes returns the applied increments in arrival order.
func (w *Whiteboard) Strokes() []protocol.WhiteboardStroke {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]protocol.WhiteboardStroke, len(w.strokes))
	copy(out, w.strokes)
	return out
}

// PaintedCells returns how many canvas cells currently hold paint.
func (w *Whiteboard) PaintedCells() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.canvas)
}

// ColorAt reports the paint at a canvas cell.
func (w *Whiteboard) ColorAt(x, y int) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	color, ok := w.canvas[cell{X: x, Y: y}]
	return color, ok
}
