package domain

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2026, time.March, 2, h, m, 0, 0, time.UTC)
}

func TestIntervalOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{
			name: "disjoint",
			a:    Interval{Start: at(9, 0), End: at(10, 0)},
			b:    Interval{Start: at(11, 0), End: at(12, 0)},
			want: false,
		},
		{
			name: "touching endpoints do not overlap",
			a:    Interval{Start: at(9, 0), End: at(10, 0)},
			b:    Interval{Start: at(10, 0), End: at(11, 0)},
			want: false,
		},
		{
			name: "partial overlap",
			a:    Interval{Start: at(9, 0), End: at(10, 30)},
			b:    Interval{Start: at(10, 0), End: at(11, 0)},
			want: true,
		},
		{
			name: "one minute of overlap counts",
			a:    Interval{Start: at(9, 0), End: at(10, 1)},
			b:    Interval{Start: at(10, 0), End: at(11, 0)},
			want: true,
		},
		{
			name: "contained",
			a:    Interval{Start: at(9, 0), End: at(12, 0)},
			b:    Interval{Start: at(10, 0), End: at(11, 0)},
			want: true,
		},
		{
			name: "identical",
			a:    Interval{Start: at(9, 0), End: at(10, 0)},
			b:    Interval{Start: at(9, 0), End: at(10, 0)},
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Errorf("Overlaps() = %v, want %v", got, tc.want)
			}
			// Overlap is symmetric.
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Errorf("reversed Overlaps() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIntervalContains(t *testing.T) {
	iv := Interval{Start: at(9, 0), End: at(10, 0)}

	if !iv.Contains(at(9, 0)) {
		t.Error("start should be contained")
	}
	if !iv.Contains(at(9, 30)) {
		t.Error("interior point should be contained")
	}
	if iv.Contains(at(10, 0)) {
		t.Error("end is exclusive")
	}
	if iv.Contains(at(8, 59)) {
		t.Error("point before start should not be contained")
	}
}

func TestIntervalValid(t *testing.T) {
	if (Interval{Start: at(9, 0), End: at(9, 0)}).Valid() {
		t.Error("empty interval should not be valid")
	}
	if (Interval{Start: at(10, 0), End: at(9, 0)}).Valid() {
		t.Error("inverted interval should not be valid")
	}
	if !(Interval{Start: at(9, 0), End: at(9, 1)}).Valid() {
		t.Error("one minute interval should be valid")
	}
}
