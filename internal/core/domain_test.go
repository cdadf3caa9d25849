package core

import "testing"

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want ClockTime
		ok   bool
	}{
		{"09:00", ClockTime{9, 0}, true},
		{"23:59", ClockTime{23, 59}, true},
		{" 13:30 ", ClockTime{13, 30}, true},
		{"24:00", ClockTime{}, false},
		{"9am", ClockTime{}, false},
		{"", ClockTime{}, false},
	}
	for i, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("case %d: got %v, %v", i, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d: expected error for %q", i, tc.in)
		}
	}
}

func TestClockTimeString(t *testing.T) {
	if s := (ClockTime{9, 5}).String(); s != "09:05" {
		t.Fatalf("got %q", s)
	}
}

func TestParseDate(t *testing.T) {
	if d, err := ParseDate("2025-06-01"); err != nil || d != "2025-06-01" {
		t.Fatalf("got %q, %v", d, err)
	}
	if _, err := ParseDate("2025-13-01"); err == nil {
		t.Fatal("expected error for month 13")
	}
	if _, err := ParseDate("01/06/2025"); err == nil {
		t.Fatal("expected error for wrong layout")
	}
}

func TestParseMonth(t *testing.T) {
	if m, err := ParseMonth("2025-06"); err != nil || m != "2025-06" {
		t.Fatalf("got %q, %v", m, err)
	}
	if _, err := ParseMonth("2025-6"); err == nil {
		t.Fatal("expected error for unpadded month")
	}
}

func TestWorkEntryValidate(t *testing.T) {
	good := WorkEntry{
		Username: "alice",
		Date:     "2025-06-01",
		Start:    ClockTime{9, 0},
		End:      ClockTime{10, 5},
		Title:    "review",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []WorkEntry{
		{Date: "not-a-date", Start: ClockTime{9, 0}, End: ClockTime{10, 0}, Title: "a"},
		{Date: "2025-06-01", Start: ClockTime{9, 0}, End: ClockTime{10, 0}, Title: "  "},
		{Date: "2025-06-01", Start: ClockTime{10, 0}, End: ClockTime{9, 59}, Title: "a"},
		{Date: "2025-06-01", Start: ClockTime{9, 0}, End: ClockTime{9, 0}, Title: "a"},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestWorkEntryMinutes(t *testing.T) {
	cases := []struct {
		start, end ClockTime
		want       int64
	}{
		{ClockTime{9, 0}, ClockTime{10, 5}, 65},
		{ClockTime{13, 0}, ClockTime{13, 30}, 30},
		{ClockTime{9, 45}, ClockTime{11, 15}, 90},
		// Historical arithmetic: a cross-midnight shape goes negative.
		// Kept for storage compatibility; the clock path rejects it first.
		{ClockTime{23, 30}, ClockTime{0, 15}, -1395},
	}
	for i, tc := range cases {
		e := WorkEntry{Start: tc.start, End: tc.end}
		if got := e.Minutes(); got != tc.want {
			t.Fatalf("case %d: got %d, want %d", i, got, tc.want)
		}
	}
}

func TestFloorHours(t *testing.T) {
	cases := []struct {
		minutes int64
		want    float64
	}{
		{370, 6.1}, // not 6.2
		{125, 2.0}, // not 2.08 rounded
		{60, 1.0},
		{65, 1.0},
		{66, 1.1},
		{0, 0.0},
	}
	for i, tc := range cases {
		if got := FloorHours(tc.minutes); got != tc.want {
			t.Fatalf("case %d: got %v, want %v", i, got, tc.want)
		}
	}
}

func TestFormatHours(t *testing.T) {
	if s := FormatHours(125); s != "2.0" {
		t.Fatalf("got %q", s)
	}
	if s := FormatHours(370); s != "6.1" {
		t.Fatalf("got %q", s)
	}
}

func TestFloorOneDecimal(t *testing.T) {
	if got := FloorOneDecimal(18500.79); got != 18500.7 {
		t.Fatalf("got %v", got)
	}
	if got := FloorOneDecimal(3.0); got != 3.0 {
		t.Fatalf("got %v", got)
	}
}
