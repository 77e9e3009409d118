package display

import "sync"

// Fake records the latest glyph and position of every slot. Safe for
// concurrent use.
type Fake struct {
	mu    sync.Mutex
	tiles map[int]int
	pos   map[int][2]int
	shown bool
	sets  int
}

// NewFake creates an empty Fake.
func NewFake() *Fake {
	return &Fake{
		tiles: make(map[int]int),
		pos:   make(map[int][2]int),
	}
}

// SetGlyph records id for slot.
func (f *Fake) SetGlyph(slot, id int) {
	f.mu.Lock()
	f.tiles[slot] = id
	f.sets++
	f.mu.Unlock()
}

// MoveGlyph records the position of slot.
func (f *Fake) MoveGlyph(slot, x, y int) {
	f.mu.Lock()
	f.pos[slot] = [2]int{x, y}
	f.mu.Unlock()
}

// ShowAll records that sprites were shown.
func (f *Fake) ShowAll() {
	f.mu.Lock()
	f.shown = true
	f.mu.Unlock()
}

// Tile returns the glyph in slot and whether one was set.
func (f *Fake) Tile(slot int) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tiles[slot]
	return id, ok
}

// Position returns the position of slot.
func (f *Fake) Position(slot int) (x, y int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.pos[slot]
	return p[0], p[1]
}

// Shown reports whether ShowAll was called.
func (f *Fake) Shown() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shown
}

// Sets returns how many SetGlyph calls were made.
func (f *Fake) Sets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets
}
