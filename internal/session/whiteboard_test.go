package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Asmer72582/upscholar-live/internal/protocol"
)

func TestDrawPaintsBrushStamp(t *testing.T) {
	board := NewWhiteboard()

	board.Apply(protocol.WhiteboardStroke{X: 10, Y: 10, Color: "#fff", Width: 4, Mode: protocol.StrokeModeDraw})

	// Width 4 stamps a radius-2 square: 5x5 cells.
	assert.Equal(t, 25, board.PaintedCells())
	color, ok := board.ColorAt(10, 10)
	require.True(t, ok)
	assert.Equal(t, "#fff", color)
	_, ok = board.ColorAt(12, 12)
	assert.True(t, ok)
	_, ok = board.ColorAt(13, 13)
	assert.False(t, ok)
}

func TestEraseClearsOnlyItsStamp(t *testing.T) {
	board := NewWhiteboard()
	board.Apply(protocol.WhiteboardStroke{X: 0, Y: 0, Color: "#fff", Width: 10, Mode: protocol.StrokeModeDraw})
	painted := board.PaintedCells()

	board.Apply(protocol.WhiteboardStroke{X: 0, Y: 0, Color: "", Width: 2, Mode: protocol.StrokeModeErase})

	assert.Less(t, board.PaintedCells(), painted)
	_, ok := board.ColorAt(0, 0)
	assert.False(t, ok, "erased center must be blank")
	_, ok = board.ColorAt(4, 4)
	assert.True(t, ok, "paint outside the eraser stamp survives")
}

func TestLaterStrokeOverpaints(t *testing.T) {
	board := NewWhiteboard()
	board.Apply(protocol.WhiteboardStroke{X: 5, Y: 5, Color: "#red", Width: 2, Mode: protocol.StrokeModeDraw})
	board.Apply(protocol.WhiteboardStroke{X: 5, Y: 5, Color: "#blue", Width: 2, Mode: protocol.StrokeModeDraw})

	color, ok := board.ColorAt(5, 5)
	require.True(t, ok)
	assert.Equal(t, "#blue", color)
}

func TestSameStreamReproducesSameCanvas(t *testing.T) {
	stream := []protocol.WhiteboardStroke{
		{X: 1, Y: 1, Color: "#a", Width: 3, Mode: protocol.StrokeModeDraw},
		{X: 2, Y: 2, Color: "#b", Width: 5, Mode: protocol.StrokeModeDraw},
		{X: 1, Y: 1, Color: "", Width: 1, Mode: protocol.StrokeModeErase},
		{X: 8, Y: 8, Color: "#c", Width: 2, Mode: protocol.StrokeModeDraw},
	}

	a, b := NewWhiteboard(), NewWhiteboard()
	for _, s := range stream {
		a.Apply(s)
	}
	b.Bootstrap(stream)

	require.Equal(t, a.PaintedCells(), b.PaintedCells())
	for x := -5; x <= 12; x++ {
		for y := -5; y <= 12; y++ {
			ca, oka := a.ColorAt(x, y)
			cb, okb := b.ColorAt(x, y)
			assert.Equal(t, oka, okb)
			assert.Equal(t, ca, cb)
		}
	}
}

func TestClearWipesCanvasAndHistory(t *testing.T) {
	board := NewWhiteboard()
	board.Apply(protocol.WhiteboardStroke{X: 1, Y: 1, Color: "#a", Width: 3, Mode: protocol.StrokeModeDraw})

	board.Clear()

	assert.Equal(t, 0, board.PaintedCells())
	assert.Empty(t, board.Strokes())
}

func TestComposeEchoesLocally(t *testing.T) {
	board := NewWhiteboard()

	stroke := board.Compose(3, 4, "#fff", 1, protocol.StrokeModeDraw)

	assert.Equal(t, 3.0, stroke.X)
	require.Len(t, board.Strokes(), 1)
	_, ok := board.ColorAt(3, 4)
	assert.True(t, ok)
}
