// Package display provides the graphics capability and the on-screen layout of
// the eight button prompts. Nothing drawn here feeds back into the game.
package display

import (
	"log"
	"sync"
)

// Display places glyphs (8x8 sprite tiles) on screen.
type Display interface {
	SetGlyph(slot, id int)
	MoveGlyph(slot, x, y int)
	ShowAll()
}

// point is a screen position.
type point struct{ x, y int }

// buttonArt is the four-glyph picture of one button. The prompt picture
// replaces the idle one while the player must press the button; the idle
// picture comes back once it has been pressed.
type buttonArt struct {
	slot   int // first of four consecutive slots
	idle   int // first of four consecutive tile ids
	prompt int
	pos    [4]point
}

// art is indexed by instruction code.
var art = [8]buttonArt{
	{0, 0x1A, 0x1E, [4]point{{36, 54}, {36, 62}, {44, 54}, {44, 62}}},       // up
	{4, 0x22, 0x26, [4]point{{36, 84}, {36, 92}, {44, 84}, {44, 92}}},       // down
	{8, 0x2A, 0x2E, [4]point{{21, 69}, {21, 77}, {29, 69}, {29, 77}}},       // left
	{12, 0x32, 0x36, [4]point{{51, 69}, {51, 77}, {59, 69}, {59, 77}}},      // right
	{16, 0x3A, 0x3E, [4]point{{131, 69}, {131, 77}, {139, 69}, {139, 77}}},  // A
	{20, 0x42, 0x46, [4]point{{101, 69}, {101, 77}, {109, 69}, {109, 77}}},  // B
	{24, 0x4A, 0x4E, [4]point{{91, 104}, {91, 111}, {99, 104}, {99, 111}}},  // start
	{28, 0x4A, 0x4E, [4]point{{66, 104}, {66, 111}, {74, 104}, {74, 111}}},  // select
}

func (a buttonArt) draw(d Display, tile int) {
	for i := 0; i < 4; i++ {
		d.SetGlyph(a.slot+i, tile+i)
	}
}

// Setup draws every button in its idle state and shows the sprites.
func Setup(d Display) {
	for _, a := range art {
		a.draw(d, a.idle)
		for i, p := range a.pos {
			d.MoveGlyph(a.slot+i, p.x, p.y)
		}
	}
	d.ShowAll()
}

// Prompt highlights the button for instruction code. Unknown codes draw
// nothing.
func Prompt(d Display, code int) {
	if code < 0 || code >= len(art) {
		return
	}
	art[code].draw(d, art[code].prompt)
}

// Pressed returns the button for instruction code to its idle picture.
func Pressed(d Display, code int) {
	if code < 0 || code >= len(art) {
		return
	}
	art[code].draw(d, art[code].idle)
}

// Discard is a Display that draws nothing.
var Discard Display = discard{}

type discard struct{}

func (discard) SetGlyph(int, int)       {}
func (discard) MoveGlyph(int, int, int) {}
func (discard) ShowAll()                {}

// Logger is a Display that logs glyph changes instead of drawing them.
// Moves are not logged.
type Logger struct {
	mu    sync.Mutex
	tiles map[int]int
}

// NewLogger creates a Logger.
func NewLogger() *Logger {
	return &Logger{tiles: make(map[int]int)}
}

// SetGlyph logs a tile change for slot.
func (l *Logger) SetGlyph(slot, id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tiles[slot] == id {
		return
	}
	l.tiles[slot] = id
	log.Printf("display: slot %d tile %#02x", slot, id)
}

// MoveGlyph is a no-op.
func (l *Logger) MoveGlyph(slot, x, y int) {}

// ShowAll logs that sprites are visible.
func (l *Logger) ShowAll() {
	log.Printf("display: sprites on")
}
