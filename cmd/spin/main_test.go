package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/MJE43/slot-tracker-go/internal/lib/logger"
	"github.com/MJE43/slot-tracker-go/internal/rng"
	"github.com/MJE43/slot-tracker-go/internal/wheel"
)

func TestRunSeededIsReproducible(t *testing.T) {
	o := options{serverSeed: "server", clientSeed: "client", nonce: 3, count: 3, frames: 2, jsonOut: true}

	var a, b bytes.Buffer
	if err := run(&a, o, logger.Discard()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := run(&b, o, logger.Discard()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if a.String() != b.String() {
		t.Fatal("seeded runs differ")
	}

	segments := wheel.DefaultSegments()
	start := 0.0
	sc := bufio.NewScanner(&a)
	n := 0
	for sc.Scan() {
		var line spinLine
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("line %d: %v", n, err)
		}
		if line.Nonce == nil || *line.Nonce != uint64(3+n) {
			t.Errorf("line %d nonce = %v", n, line.Nonce)
		}
		if len(line.Frames) != 2 {
			t.Errorf("line %d frames = %d", n, len(line.Frames))
		}
		want := rng.Floats("server", "client", uint64(3+n), 0, 1)[0]
		final, winner := wheel.Replay(segments, start, want, wheel.DefaultRotations)
		if line.WinnerID != winner.ID || line.FinalRotation != final {
			t.Errorf("line %d = %+v, want winner %s at %v", n, line, winner.ID, final)
		}
		start = final
		n++
	}
	if n != 3 {
		t.Fatalf("got %d lines, want 3", n)
	}
}

func TestRunRejectsWrongHash(t *testing.T) {
	o := options{serverSeed: "server", hash: rng.HashSeed("other"), count: 1}
	err := run(&bytes.Buffer{}, o, logger.Discard())
	if !errors.Is(err, rng.ErrSeedMismatch) {
		t.Fatalf("err = %v, want ErrSeedMismatch", err)
	}
}

func TestRunTextOutput(t *testing.T) {
	var out bytes.Buffer
	o := options{serverSeed: "s", clientSeed: "c", count: 1}
	if err := run(&out, o, logger.Discard()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.HasPrefix(out.String(), "nonce 0  fraction ") || !strings.Contains(out.String(), "winner ") {
		t.Errorf("output = %q", out.String())
	}
	if err := run(&out, options{count: 0}, logger.Discard()); err == nil {
		t.Error("expected error for zero spins")
	}
}
