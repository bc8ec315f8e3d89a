package utils

import (
	"path/filepath"
	"testing"
	"time"
)

func TestParseDay(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2019-07-10", want: "2019-07-10"},
		{in: "2019-07-10T23:59:00Z", want: "2019-07-10"},
		{in: "2019-07-10T23:30:00-02:00", want: "2019-07-11"},
		{in: " 2019-07-10 ", want: "2019-07-10"},
		{in: "", wantErr: true},
		{in: "10/07/2019", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseDay(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseDay(%q): expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDay(%q): unexpected error: %v", tt.in, err)
		}
		if FormatDay(got) != tt.want {
			t.Fatalf("ParseDay(%q) = %s, want %s", tt.in, FormatDay(got), tt.want)
		}
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2019, 7, 10, 0, 0, 1, 0, time.UTC)
	b := time.Date(2019, 7, 10, 23, 59, 59, 0, time.UTC)
	if !SameDay(a, b) {
		t.Fatalf("expected %s and %s to be the same day", a, b)
	}
	if SameDay(a, b.Add(time.Second)) {
		t.Fatalf("expected midnight rollover to be a different day")
	}
}

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.txt")
	l, err := NewFileLock(path)
	if err != nil {
		t.Fatalf("NewFileLock: %v", err)
	}
	if err := l.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
}
