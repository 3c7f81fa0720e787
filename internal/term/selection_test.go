package term

import "testing"

func TestSelection_StreamCopy(t *testing.T) {
	e := NewEmulator(20, 3)
	e.Advance([]byte("hello world"))
	e.StartSelection(0, 0, 0, SelectionStream)
	e.ExtendSelection(4, 0, 0)
	if got := e.CopySelection(); got != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}

func TestSelection_ReversedEndpoints(t *testing.T) {
	e := NewEmulator(20, 3)
	e.Advance([]byte("hello world"))
	e.StartSelection(4, 0, 0, SelectionStream)
	e.ExtendSelection(0, 0, 0)
	if got := e.CopySelection(); got != "hello" {
		t.Fatalf("expected reversed selection to normalize, got %q", got)
	}
}

func TestSelection_MultiLine(t *testing.T) {
	e := NewEmulator(10, 3)
	e.Advance([]byte("one\r\ntwo\r\nthree"))
	e.StartSelection(0, 0, 0, SelectionStream)
	e.ExtendSelection(2, 2, 0)
	if got := e.CopySelection(); got != "one\ntwo\nthr" {
		t.Fatalf("unexpected multi-line copy: %q", got)
	}
}

func TestSelection_LineMode(t *testing.T) {
	e := NewEmulator(10, 3)
	e.Advance([]byte("one\r\ntwo\r\nthree"))
	e.SelectLineAt(1, 0)
	if got := e.CopySelection(); got != "two" {
		t.Fatalf("expected whole line, got %q", got)
	}
}

func TestSelection_BlockMode(t *testing.T) {
	e := NewEmulator(10, 3)
	e.Advance([]byte("abcd\r\nefgh\r\nijkl"))
	e.StartSelection(1, 0, 0, SelectionBlock)
	e.ExtendSelection(2, 2, 0)
	if got := e.CopySelection(); got != "bc\nfg\njk" {
		t.Fatalf("unexpected block copy: %q", got)
	}
}

func TestSelection_WordAt(t *testing.T) {
	e := NewEmulator(30, 3)
	e.Advance([]byte("run ./scripts/build.sh now"))
	e.SelectWordAt(8, 0, 0)
	if got := e.CopySelection(); got != "./scripts/build.sh" {
		t.Fatalf("expected path-like word, got %q", got)
	}
}

func TestSelection_WordContainsClickPoint(t *testing.T) {
	e := NewEmulator(30, 2)
	e.Advance([]byte("alpha beta gamma"))
	e.SelectWordAt(7, 0, 0)
	got := e.CopySelection()
	if got != "beta" {
		t.Fatalf("expected word under cursor, got %q", got)
	}
	// start ≤ click ≤ end.
	if e.sel.anchorCol > 7 || e.sel.headCol < 7 {
		t.Fatalf("selection does not bracket the click position")
	}
}

func TestSelection_WideGlyphCopiedWhole(t *testing.T) {
	e := NewEmulator(20, 2)
	e.Advance([]byte("a汉b"))
	// Select only the continuation cell of the wide glyph.
	e.StartSelection(2, 0, 0, SelectionStream)
	e.ExtendSelection(2, 0, 0)
	if got := e.CopySelection(); got != "汉" {
		t.Fatalf("expected whole wide glyph, got %q", got)
	}
}

func TestSelection_SurvivesScrollbackEviction(t *testing.T) {
	e := NewEmulator(10, 2)
	e.Advance([]byte("first\r\n"))
	e.SelectLineAt(0, 0)
	for i := 0; i < 20; i++ {
		e.Advance([]byte("x\r\n"))
	}
	// The anchored line moved into scrollback; absolute coordinates keep the
	// selection pinned to its text.
	if got := e.CopySelection(); got != "first" {
		t.Fatalf("expected selection to track evicted line, got %q", got)
	}
}

func TestSelection_Clear(t *testing.T) {
	e := NewEmulator(10, 2)
	e.Advance([]byte("abc"))
	e.SelectLineAt(0, 0)
	if !e.HasSelection() {
		t.Fatalf("expected active selection")
	}
	e.ClearSelection()
	if e.HasSelection() || e.CopySelection() != "" {
		t.Fatalf("expected selection cleared")
	}
}
