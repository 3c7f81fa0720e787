// Package term owns the embedded terminal: a PTY host running the user's
// shell, a VT emulator maintaining a cell grid with bounded scrollback, and
// the selection and mouse-passthrough machinery on top of them.
package term

// ColorKind discriminates the cell color encodings a VT stream can produce.
type ColorKind uint8

const (
	ColorDefault ColorKind = iota
	ColorANSI              // 0-15
	ColorIndexed           // 0-255
	ColorRGB               // 24-bit, packed 0xRRGGBB
)

// Color is one cell color. The zero value is the terminal default.
type Color struct {
	Kind  ColorKind
	Value uint32
}

// AttrFlags are per-cell style attributes.
type AttrFlags uint8

const (
	AttrBold AttrFlags = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrReverse
	AttrStrike
)

// Cell is one grid position. Width is 1 for a normal glyph, 2 for the head of
// a wide glyph, and 0 for the continuation cell behind a wide head.
type Cell struct {
	Rune  rune
	Width uint8
	FG    Color
	BG    Color
	Attr  AttrFlags
}

func blankCell() Cell {
	return Cell{Rune: ' ', Width: 1}
}

func blankRow(cols int) []Cell {
	row := make([]Cell, cols)
	for i := range row {
		row[i] = blankCell()
	}
	return row
}

// Frame is one renderable snapshot of the grid.
type Frame struct {
	Cols, Rows    int
	Cells         [][]Cell
	Selected      [][]bool
	CursorRow     int
	CursorCol     int
	CursorVisible bool
	// Offset is the clamped view offset this frame was built for.
	Offset int
	Title  string
}

// ModeFlags is the bitset of terminal states reported by the child program.
// Callers test it with Intersects because foreground programs enable subsets.
type ModeFlags uint16

const (
	ModeMouseClick ModeFlags = 1 << iota
	ModeMouseDrag
	ModeMouseMotion
	ModeMouseSGR
	ModeAltScreen
	ModeBracketedPaste
	ModeAppCursor
)

// Intersects reports whether any bit of mask is set.
func (m ModeFlags) Intersects(mask ModeFlags) bool {
	return m&mask != 0
}

// mouseReportMask covers every mode in which the foreground program wants
// mouse events forwarded instead of handled locally.
const mouseReportMask = ModeMouseClick | ModeMouseDrag | ModeMouseMotion
