package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateName(t *testing.T) {
	cases := []struct {
		in   string
		want error
	}{
		{"client-work", nil},
		{"p1", nil},
		{"a", nil},
		{"internal-2024-q1", nil},
		{"", ErrEmptyName},
		{"   ", ErrEmptyName},
		{strings.Repeat("a", MaxNameLength+1), ErrNameTooLong},
		{"Client-Work", ErrInvalidName},
		{"client work", ErrInvalidName},
		{"client--work", ErrInvalidName},
		{"-client", ErrInvalidName},
		{"client-", ErrInvalidName},
	}
	for _, tc := range cases {
		if err := ValidateName(tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%q expected %v, got %v", tc.in, tc.want, err)
		}
	}
}

func TestCategoryValidate(t *testing.T) {
	good := Category{Name: "billable", Description: "client time"}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	long := Category{Name: "billable", Description: strings.Repeat("x", MaxDescriptionLength+1)}
	if err := long.Validate(); !errors.Is(err, ErrDescriptionTooLong) {
		t.Fatalf("expected ErrDescriptionTooLong, got %v", err)
	}
}

func TestRecordValidate(t *testing.T) {
	stop := int64(200)
	early := int64(50)
	instant := int64(100)
	cases := []struct {
		rec  Record
		want error
	}{
		{Record{Project: "p1", StartTimeEpoch: 100, StopTimeEpoch: &stop}, nil},
		{Record{Project: "p1", StartTimeEpoch: 100}, nil}, // open
		{Record{Project: "p1", StartTimeEpoch: 100, StopTimeEpoch: &instant}, nil}, // zero-length span

		{Record{Project: "", StartTimeEpoch: 100}, ErrEmptyProject},
		{Record{Project: "  ", StartTimeEpoch: 100}, ErrEmptyProject},
		{Record{Project: "p1", StartTimeEpoch: -1}, ErrNegativeStart},
		{Record{Project: "p1", StartTimeEpoch: 100, StopTimeEpoch: &early}, ErrStopBeforeStart},
	}
	for i, tc := range cases {
		if err := tc.rec.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("case %d expected %v, got %v", i, tc.want, err)
		}
	}
}

func TestRecordElapsed(t *testing.T) {
	stop := int64(4600)
	closed := Record{Project: "p1", StartTimeEpoch: 1000, StopTimeEpoch: &stop}
	if got := closed.Elapsed(time.Unix(9999, 0)); got != 3600 {
		t.Fatalf("closed record expected 3600, got %d", got)
	}

	open := Record{Project: "p1", StartTimeEpoch: 1000}
	if got := open.Elapsed(time.Unix(1900, 0)); got != 900 {
		t.Fatalf("open record expected 900, got %d", got)
	}
	if !open.Open() {
		t.Fatalf("expected open")
	}
	if closed.Open() {
		t.Fatalf("expected closed")
	}
}
