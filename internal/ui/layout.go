package ui

// mouseTarget is the UI element under a screen position.
type mouseTarget int

const (
	targetOutside mouseTarget = iota
	targetTerminal
	targetSeparator
	targetAssistantTabs
	targetAssistantMessages
	targetAssistantInput
)

const (
	minSplitRatio = 10
	maxSplitRatio = 90
)

// appLayout is the computed split-pane geometry for one frame. All fields are
// screen coordinates; inner areas exclude the pane borders.
type appLayout struct {
	width, height int

	termX, termW int
	sepX         int
	asstX, asstW int

	termInnerX, termInnerY int
	termInnerW, termInnerH int

	tabY int

	msgY, msgH int

	inputY, inputH int
}

// computeLayout splits the screen at ratio percent (clamped 10-90) with a one
// column separator. inputLines is the assistant editor's current height.
func computeLayout(width, height, ratio, inputLines int) appLayout {
	if ratio < minSplitRatio {
		ratio = minSplitRatio
	}
	if ratio > maxSplitRatio {
		ratio = maxSplitRatio
	}
	if inputLines < 1 {
		inputLines = 1
	}

	termW := (width - 1) * ratio / 100
	if termW < 4 {
		termW = 4
	}
	if termW > width-5 {
		termW = width - 5
	}
	asstX := termW + 1
	asstW := width - asstX

	inputH := inputLines + 2 // bordered editor
	if inputH > height-4 {
		inputH = height - 4
	}
	if inputH < 3 {
		inputH = 3
	}
	msgY := 1 // below the tab bar
	msgH := height - msgY - inputH

	l := appLayout{
		width:  width,
		height: height,

		termX: 0,
		termW: termW,
		sepX:  termW,
		asstX: asstX,
		asstW: asstW,

		termInnerX: 1,
		termInnerY: 1,
		termInnerW: termW - 2,
		termInnerH: height - 2,

		tabY:   0,
		msgY:   msgY,
		msgH:   msgH,
		inputY: msgY + msgH,
		inputH: inputH,
	}
	if l.termInnerW < 1 {
		l.termInnerW = 1
	}
	if l.termInnerH < 1 {
		l.termInnerH = 1
	}
	if l.msgH < 1 {
		l.msgH = 1
	}
	return l
}

// target maps a screen position to a UI element.
func (l appLayout) target(x, y int) mouseTarget {
	if x < 0 || y < 0 || x >= l.width || y >= l.height {
		return targetOutside
	}
	if x == l.sepX {
		return targetSeparator
	}
	if x < l.termW {
		return targetTerminal
	}
	if x >= l.asstX {
		switch {
		case y == l.tabY:
			return targetAssistantTabs
		case y >= l.inputY:
			return targetAssistantInput
		default:
			return targetAssistantMessages
		}
	}
	return targetOutside
}

// terminalInner converts a screen position to 0-based terminal inner
// coordinates, clamped to the inner area.
func (l appLayout) terminalInner(x, y int) (col, row int) {
	col = x - l.termInnerX
	row = y - l.termInnerY
	if col < 0 {
		col = 0
	}
	if col >= l.termInnerW {
		col = l.termInnerW - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= l.termInnerH {
		row = l.termInnerH - 1
	}
	return col, row
}
