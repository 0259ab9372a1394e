package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRunFromArgs(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"-max", "2", "checking", "their", "phone"}, strings.NewReader(""), &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "\n🚗 Safety Tips & Recommendations:\n\n" +
		"1. Keep your phone out of reach while driving\n" +
		"2. Set up GPS and music before starting your journey\n"
	if out.String() != want {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestRunFromStdinFallback(t *testing.T) {
	var out bytes.Buffer
	if err := run(nil, strings.NewReader("hello world"), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "1. Always wear your seatbelt") {
		t.Fatalf("expected fallback tips, got %q", out.String())
	}
}

func TestRunZeroTipsPrintsNothing(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-max", "0", "speeding"}, strings.NewReader(""), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected empty output, got %q", out.String())
	}
}

func TestRunAlert(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-alert", "fatigue"}, strings.NewReader(""), &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Consider taking a break") {
		t.Fatalf("unexpected alert %q", out.String())
	}
	if err := run([]string{"-max", "-1"}, strings.NewReader(""), &out); err == nil {
		t.Fatal("expected error for negative max")
	}
}
