package term

import "testing"

func TestEncodeSGR_LeftClick(t *testing.T) {
	got := EncodeSGR(MouseEvent{Button: MouseLeft, Col: 5, Row: 3, Press: true}, 80, 24)
	if string(got) != "\x1b[<0;5;3M" {
		t.Fatalf("expected left click sequence, got %q", got)
	}
}

func TestEncodeSGR_Release(t *testing.T) {
	got := EncodeSGR(MouseEvent{Button: MouseLeft, Col: 5, Row: 3, Press: false}, 80, 24)
	if string(got) != "\x1b[<0;5;3m" {
		t.Fatalf("expected release final byte m, got %q", got)
	}
}

func TestEncodeSGR_Buttons(t *testing.T) {
	cases := []struct {
		button MouseButton
		want   string
	}{
		{MouseLeft, "\x1b[<0;1;1M"},
		{MouseMiddle, "\x1b[<1;1;1M"},
		{MouseRight, "\x1b[<2;1;1M"},
		{MouseMotion, "\x1b[<32;1;1M"},
		{MouseWheelUp, "\x1b[<64;1;1M"},
		{MouseWheelDown, "\x1b[<65;1;1M"},
	}
	for _, tc := range cases {
		got := EncodeSGR(MouseEvent{Button: tc.button, Col: 1, Row: 1, Press: true}, 80, 24)
		if string(got) != tc.want {
			t.Fatalf("button %d: expected %q, got %q", tc.button, tc.want, got)
		}
	}
}

func TestEncodeSGR_Modifiers(t *testing.T) {
	ev := MouseEvent{Button: MouseLeft, Col: 1, Row: 1, Press: true, Shift: true, Alt: true, Ctrl: true}
	got := EncodeSGR(ev, 80, 24)
	// 0 + 4 (shift) + 8 (alt) + 16 (ctrl)
	if string(got) != "\x1b[<28;1;1M" {
		t.Fatalf("expected modifier adders summed, got %q", got)
	}
}

func TestEncodeSGR_ClampsToInnerArea(t *testing.T) {
	got := EncodeSGR(MouseEvent{Button: MouseLeft, Col: 500, Row: -3, Press: true}, 80, 24)
	if string(got) != "\x1b[<0;80;1M" {
		t.Fatalf("expected coordinates clamped to edges, got %q", got)
	}
	got = EncodeSGR(MouseEvent{Button: MouseLeft, Col: 0, Row: 99, Press: true}, 80, 24)
	if string(got) != "\x1b[<0;1;24M" {
		t.Fatalf("expected coordinates clamped to edges, got %q", got)
	}
}
