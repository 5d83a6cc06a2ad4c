package report

import (
	"errors"
	"testing"
	"time"
)

func TestResolveWindow(t *testing.T) {
	cases := []struct {
		name      string
		start     string
		end       string
		wantErr   error
		wantStart string // empty means unbounded
		wantEnd   string
	}{
		{name: "both empty", start: "", end: ""},
		{name: "start only", start: "2024-01-01", wantStart: "2024-01-01T00:00:00Z"},
		{name: "end only extends to end of day", end: "2024-06-30", wantEnd: "2024-06-30T23:59:59Z"},
		{name: "full window", start: "2024-01-01", end: "2024-12-31",
			wantStart: "2024-01-01T00:00:00Z", wantEnd: "2024-12-31T23:59:59Z"},
		{name: "rfc3339 end kept exact", end: "2024-06-30T12:00:00Z", wantEnd: "2024-06-30T12:00:00Z"},
		{name: "whitespace trimmed", start: " 2024-01-01 ", wantStart: "2024-01-01T00:00:00Z"},
		{name: "bad start", start: "not-a-date", wantErr: ErrInvalidDate},
		{name: "bad end", end: "2024-13-45", wantErr: ErrInvalidDate},
		{name: "inverted", start: "2024-12-31", end: "2024-01-01", wantErr: ErrInvalidWindow},
		{name: "same day is valid", start: "2024-06-15", end: "2024-06-15",
			wantStart: "2024-06-15T00:00:00Z", wantEnd: "2024-06-15T23:59:59Z"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := ResolveWindow(tc.start, tc.end)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			checkBound(t, "start", w.Start, tc.wantStart)
			checkBound(t, "end", w.End, tc.wantEnd)
		})
	}
}

func checkBound(t *testing.T, side string, got *time.Time, want string) {
	t.Helper()
	if want == "" {
		if got != nil {
			t.Fatalf("%s: expected unbounded, got %v", side, got)
		}
		return
	}
	if got == nil {
		t.Fatalf("%s: expected %s, got unbounded", side, want)
	}
	if got.Format(time.RFC3339) != want {
		t.Fatalf("%s = %s, want %s", side, got.Format(time.RFC3339), want)
	}
}

func TestWindowContainsInclusive(t *testing.T) {
	w, err := ResolveWindow("2024-01-01", "2024-12-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		t    time.Time
		want bool
	}{
		{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},    // exact start
		{time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC), true}, // exact end
		{time.Date(2024, 12, 31, 12, 0, 0, 0, time.UTC), true},
		{time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC), false},
		{time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), false},
	}
	for i, tc := range cases {
		if got := w.Contains(tc.t); got != tc.want {
			t.Fatalf("case %d: Contains(%v) = %v, want %v", i, tc.t, got, tc.want)
		}
	}
}

func TestWindowContainsUnbounded(t *testing.T) {
	w := Window{}
	for _, tm := range []time.Time{
		time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2999, 12, 31, 0, 0, 0, 0, time.UTC),
	} {
		if !w.Contains(tm) {
			t.Fatalf("unbounded window should contain %v", tm)
		}
	}
}

func TestWindowLabels(t *testing.T) {
	w := Window{}
	if w.StartLabel() != "Beginning" || w.EndLabel() != "Now" {
		t.Fatalf("unbounded labels = %q/%q", w.StartLabel(), w.EndLabel())
	}

	w, err := ResolveWindow("2024-03-01", "2024-03-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.StartLabel() != "2024-03-01" || w.EndLabel() != "2024-03-31" {
		t.Fatalf("bounded labels = %q/%q", w.StartLabel(), w.EndLabel())
	}
}

func TestYearWindow(t *testing.T) {
	w := YearWindow(2024)
	wantStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
	if !w.Start.Equal(wantStart) {
		t.Fatalf("start = %v, want %v", w.Start, wantStart)
	}
	if !w.End.Equal(wantEnd) {
		t.Fatalf("end = %v, want %v", w.End, wantEnd)
	}
	// Dec 31 23:59:59 is inside, the next second is not.
	if !w.Contains(wantEnd) {
		t.Fatalf("year window must include its last second")
	}
	if w.Contains(wantEnd.Add(time.Second)) {
		t.Fatalf("year window must exclude the next year")
	}
}
