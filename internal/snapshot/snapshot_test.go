package snapshot

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"hyper-ca/internal/core"
)

func TestCaptureRestoreRoundTrip(t *testing.T) {
	lat := core.NewLattice(3, 4)
	cells := make([]uint8, lat.Volume())
	core.FillBernoulli(core.NewRNG(13).Source(), cells, 0.3)

	snap := Capture(lat, 17, core.DefaultRule(3), cells)
	if snap.Dimension != 3 || snap.Size != 4 || snap.Generation != 17 {
		t.Fatalf("captured header = %d/%d/%d", snap.Dimension, snap.Size, snap.Generation)
	}

	got, err := snap.Restore()
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	for i := range cells {
		if got[i] != cells[i] {
			t.Fatalf("cell %d = %d after round trip, want %d", i, got[i], cells[i])
		}
	}
}

func TestCaptureTreatsNonzeroAsAlive(t *testing.T) {
	lat := core.NewLattice(3, 2)
	cells := make([]uint8, lat.Volume())
	cells[3] = 7
	snap := Capture(lat, 0, core.DefaultRule(3), cells)
	if len(snap.Alive) != 1 || snap.Alive[0] != 3 {
		t.Fatalf("alive indices = %v, want [3]", snap.Alive)
	}
}

func TestRestoreRejectsOutOfRangeIndex(t *testing.T) {
	snap := Snapshot{Dimension: 3, Size: 2, Alive: []int{8}}
	if _, err := snap.Restore(); !errors.Is(err, ErrIndexRange) {
		t.Fatalf("index 8 of 8: got %v, want ErrIndexRange", err)
	}
	snap.Alive = []int{-1}
	if _, err := snap.Restore(); !errors.Is(err, ErrIndexRange) {
		t.Fatalf("negative index: got %v, want ErrIndexRange", err)
	}
}

func TestJSONFieldNames(t *testing.T) {
	lat := core.NewLattice(4, 2)
	cells := make([]uint8, lat.Volume())
	cells[0] = 1
	data, err := json.Marshal(Capture(lat, 3, core.DefaultRule(4), cells))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, key := range []string{
		`"dimension"`, `"size"`, `"generation"`, `"rules"`,
		`"livingCellIndices"`, `"survivalMin"`, `"survivalMax"`,
		`"birthMin"`, `"birthMax"`,
	} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("encoded snapshot %s missing key %s", data, key)
		}
	}
}
