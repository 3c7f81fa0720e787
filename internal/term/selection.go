package term

import "strings"

// SelectionMode controls how the selected region is shaped.
type SelectionMode int

const (
	SelectionStream SelectionMode = iota
	SelectionLine
	SelectionBlock
)

// selection tracks anchor and head in absolute line coordinates (baseLine +
// combined index) so scrollback eviction never shifts an active selection.
type selection struct {
	active     bool
	mode       SelectionMode
	anchorLine int64
	anchorCol  int
	headLine   int64
	headCol    int
}

// absLineAt converts a view row (under the given offset) to an absolute line.
func (e *Emulator) absLineAt(viewRow, viewOffset int) int64 {
	offset := e.ClampOffset(viewOffset)
	combined := len(e.scrollback) - offset + clamp(viewRow, 0, e.rows-1)
	return e.baseLine + int64(combined)
}

// rowForAbsLine resolves an absolute line back to its cells, or nil when the
// line has been evicted.
func (e *Emulator) rowForAbsLine(line int64) []Cell {
	combined := line - e.baseLine
	if combined < 0 {
		return nil
	}
	idx := int(combined)
	if idx < len(e.scrollback) {
		return e.scrollback[idx]
	}
	idx -= len(e.scrollback)
	if idx < e.rows {
		return e.cells[idx]
	}
	return nil
}

// StartSelection anchors a new selection at a view position.
func (e *Emulator) StartSelection(col, viewRow, viewOffset int, mode SelectionMode) {
	line := e.absLineAt(viewRow, viewOffset)
	col = clamp(col, 0, e.cols-1)
	e.sel = selection{
		active:     true,
		mode:       mode,
		anchorLine: line,
		anchorCol:  col,
		headLine:   line,
		headCol:    col,
	}
}

// ExtendSelection moves the selection head to a view position.
func (e *Emulator) ExtendSelection(col, viewRow, viewOffset int) {
	if !e.sel.active {
		return
	}
	e.sel.headLine = e.absLineAt(viewRow, viewOffset)
	e.sel.headCol = clamp(col, 0, e.cols-1)
}

// SetSelectionMode switches the shape of the active selection in place.
func (e *Emulator) SetSelectionMode(mode SelectionMode) {
	e.sel.mode = mode
}

// SelectionMode returns the active selection shape.
func (e *Emulator) SelectionMode() SelectionMode {
	return e.sel.mode
}

// HasSelection reports whether a selection is active.
func (e *Emulator) HasSelection() bool {
	return e.sel.active
}

// ClearSelection drops the active selection.
func (e *Emulator) ClearSelection() {
	e.sel = selection{}
}

// SelectWordAt selects the word under a view position. Word characters are
// letters, digits, and common path punctuation, so file names select whole.
func (e *Emulator) SelectWordAt(col, viewRow, viewOffset int) {
	line := e.absLineAt(viewRow, viewOffset)
	row := e.rowForAbsLine(line)
	if row == nil {
		return
	}
	col = clamp(col, 0, len(row)-1)
	// Step off a wide-glyph continuation onto its head.
	for col > 0 && row[col].Width == 0 {
		col--
	}
	if !isWordCell(row[col]) {
		return
	}
	start, end := col, col
	for start > 0 && isWordCell(row[start-1]) {
		start--
	}
	for end+1 < len(row) && isWordCell(row[end+1]) {
		end++
	}
	e.sel = selection{
		active:     true,
		mode:       SelectionStream,
		anchorLine: line,
		anchorCol:  start,
		headLine:   line,
		headCol:    end,
	}
}

// SelectLineAt selects the whole line under a view position.
func (e *Emulator) SelectLineAt(viewRow, viewOffset int) {
	line := e.absLineAt(viewRow, viewOffset)
	e.sel = selection{
		active:     true,
		mode:       SelectionLine,
		anchorLine: line,
		anchorCol:  0,
		headLine:   line,
		headCol:    e.cols - 1,
	}
}

func isWordCell(c Cell) bool {
	if c.Width == 0 {
		return true // continuation belongs to its head
	}
	r := c.Rune
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_', r == '-', r == '.', r == '/', r == '~':
		return true
	case r > 0x7f:
		return true
	}
	return false
}

// contains reports whether the selection covers the given absolute position.
func (s *selection) contains(line int64, col int) bool {
	if !s.active {
		return false
	}
	startLine, startCol, endLine, endCol := s.ordered()
	switch s.mode {
	case SelectionLine:
		return line >= startLine && line <= endLine
	case SelectionBlock:
		lo, hi := startCol, endCol
		if lo > hi {
			lo, hi = hi, lo
		}
		return line >= startLine && line <= endLine && col >= lo && col <= hi
	default:
		if line < startLine || line > endLine {
			return false
		}
		if startLine == endLine {
			return col >= startCol && col <= endCol
		}
		if line == startLine {
			return col >= startCol
		}
		if line == endLine {
			return col <= endCol
		}
		return true
	}
}

// ordered returns the selection endpoints with start ≤ end in reading order.
func (s *selection) ordered() (startLine int64, startCol int, endLine int64, endCol int) {
	if s.anchorLine < s.headLine || (s.anchorLine == s.headLine && s.anchorCol <= s.headCol) {
		return s.anchorLine, s.anchorCol, s.headLine, s.headCol
	}
	return s.headLine, s.headCol, s.anchorLine, s.anchorCol
}

// CopySelection extracts the selected text. Wide glyphs are copied whole even
// when only one of their cells falls inside the region; trailing blanks are
// trimmed per row and rows join with newlines.
func (e *Emulator) CopySelection() string {
	if !e.sel.active {
		return ""
	}
	startLine, _, endLine, _ := e.sel.ordered()
	var lines []string
	for line := startLine; line <= endLine; line++ {
		row := e.rowForAbsLine(line)
		if row == nil {
			continue
		}
		var b strings.Builder
		for col := 0; col < len(row); col++ {
			cell := row[col]
			if cell.Width == 0 {
				continue
			}
			selected := e.sel.contains(line, col)
			if !selected && cell.Width == 2 && col+1 < len(row) && e.sel.contains(line, col+1) {
				selected = true
			}
			if selected {
				b.WriteRune(cell.Rune)
			}
		}
		lines = append(lines, strings.TrimRight(b.String(), " "))
	}
	return strings.Join(lines, "\n")
}
