package extract

import "testing"

func TestReconstructPageOrdersByGeometry(t *testing.T) {
	// Fragments supplied out of reading order; y descending wins, then x.
	frags := []fragment{
		{text: "world", x: 40, y: 700, width: 30},
		{text: "Second line", x: 10, y: 680, width: 60},
		{text: "Hello", x: 10, y: 700, width: 25},
	}
	got := reconstructPage(frags, 4, 3)
	want := "Hello world\nSecond line"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestReconstructPageYTolerance(t *testing.T) {
	// 3 units apart vertically: same line under the default tolerance of 4.
	frags := []fragment{
		{text: "base", x: 10, y: 700, width: 20},
		{text: "line", x: 40, y: 697, width: 20},
	}
	if got := reconstructPage(frags, 4, 3); got != "base line" {
		t.Fatalf("got %q, want %q", got, "base line")
	}
	// 5 units apart: separate lines.
	frags[1].y = 695
	if got := reconstructPage(frags, 4, 3); got != "base\nline" {
		t.Fatalf("got %q, want %q", got, "base\nline")
	}
}

func TestReconstructPageSpaceGap(t *testing.T) {
	tests := []struct {
		name string
		a, b fragment
		want string
	}{
		{
			name: "gap above threshold inserts space",
			a:    fragment{text: "foo", x: 10, y: 700, width: 15},
			b:    fragment{text: "bar", x: 30, y: 700, width: 15},
			want: "foo bar",
		},
		{
			name: "gap below threshold joins",
			a:    fragment{text: "foo", x: 10, y: 700, width: 15},
			b:    fragment{text: "bar", x: 27, y: 700, width: 15},
			want: "foobar",
		},
		{
			name: "trailing open bracket suppresses space",
			a:    fragment{text: "see (", x: 10, y: 700, width: 22},
			b:    fragment{text: "note", x: 40, y: 700, width: 18},
			want: "see (note",
		},
		{
			name: "trailing hyphen suppresses space",
			a:    fragment{text: "multi-", x: 10, y: 700, width: 25},
			b:    fragment{text: "part", x: 42, y: 700, width: 18},
			want: "multi-part",
		},
		{
			name: "leading punctuation suppresses space",
			a:    fragment{text: "done", x: 10, y: 700, width: 20},
			b:    fragment{text: ".", x: 36, y: 700, width: 2},
			want: "done.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reconstructPage([]fragment{tt.a, tt.b}, 4, 3)
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReconstructPageExplicitBreak(t *testing.T) {
	// An explicit break closes the line even with identical geometry.
	frags := []fragment{
		{text: "Heading", x: 10, y: 700, width: 40, lineBreak: true},
		{text: "body", x: 60, y: 700, width: 20},
	}
	got := reconstructPage(frags, 4, 3)
	if got != "Heading\nbody" {
		t.Fatalf("got %q, want %q", got, "Heading\nbody")
	}
}

func TestReconstructPageEmpty(t *testing.T) {
	if got := reconstructPage(nil, 4, 3); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}
