package engine

import (
	"errors"
	"testing"

	"hyper-ca/internal/compute"
	"hyper-ca/internal/core"
)

func newTestEngine(t *testing.T, dim, size int, rule core.Rule) *Engine {
	t.Helper()
	be := compute.NewCPU()
	t.Cleanup(be.Close)
	eng, err := New(be, dim, size, rule)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(eng.Close)
	return eng
}

func aliveSet(t *testing.T, eng *Engine) map[int]bool {
	t.Helper()
	cells, err := eng.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	out := map[int]bool{}
	for i, c := range cells {
		if c != 0 {
			out[i] = true
		}
	}
	return out
}

func TestRejectsBadDimension(t *testing.T) {
	be := compute.NewCPU()
	defer be.Close()
	for _, dim := range []int{0, 1, 2, 5} {
		if _, err := New(be, dim, 8, core.DefaultRule(3)); !errors.Is(err, ErrDimension) {
			t.Fatalf("dim %d: got %v, want ErrDimension", dim, err)
		}
	}
}

func TestSeedSizeMismatch(t *testing.T) {
	eng := newTestEngine(t, 3, 4, core.DefaultRule(3))
	if err := eng.Seed(make([]uint8, 63)); !errors.Is(err, ErrSizeMismatch) {
		t.Fatalf("short seed: got %v, want ErrSizeMismatch", err)
	}
	// A rejected seed must not disturb state or the generation counter.
	if err := eng.Seed(make([]uint8, 64)); err != nil {
		t.Fatalf("Seed: %v", err)
	}
}

func TestSeedStateRoundTrip(t *testing.T) {
	eng := newTestEngine(t, 3, 4, core.DefaultRule(3))
	cells := make([]uint8, 64)
	core.FillBernoulli(core.NewRNG(11).Source(), cells, 0.4)

	if err := eng.Seed(cells); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	got, err := eng.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	for i := range cells {
		if got[i] != cells[i] {
			t.Fatalf("cell %d = %d after round trip, want %d", i, got[i], cells[i])
		}
	}
}

func TestAllDeadStaysDead(t *testing.T) {
	eng := newTestEngine(t, 3, 6, core.DefaultRule(3))
	if err := eng.Seed(make([]uint8, 6*6*6)); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := eng.Step(); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}
	if alive := aliveSet(t, eng); len(alive) != 0 {
		t.Fatalf("all-dead lattice produced %d living cells", len(alive))
	}
}

func TestGenerationCounter(t *testing.T) {
	eng := newTestEngine(t, 3, 4, core.DefaultRule(3))
	if err := eng.SeedRandom(0.2, 5); err != nil {
		t.Fatalf("SeedRandom: %v", err)
	}
	if eng.Generation() != 0 {
		t.Fatalf("generation after seed = %d, want 0", eng.Generation())
	}
	for i := 0; i < 5; i++ {
		if err := eng.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if eng.Generation() != 5 {
		t.Fatalf("generation after 5 steps = %d, want 5", eng.Generation())
	}
	if err := eng.SeedRandom(0.2, 6); err != nil {
		t.Fatalf("SeedRandom: %v", err)
	}
	if eng.Generation() != 0 {
		t.Fatalf("generation after reseed = %d, want 0", eng.Generation())
	}
}

// A size=3 lattice wraps every axis onto its three values, so a line of
// three cells along Y is a closed ring: each living cell sees exactly the
// other two, and every dead cell sees all three. With survive [2,3] and
// birth [3,3] one step fills the whole lattice and a second step starves it.
func TestBlinkerRingFillsThenDies(t *testing.T) {
	rule := core.Rule{SurvivalMin: 2, SurvivalMax: 3, BirthMin: 3, BirthMax: 3}
	eng := newTestEngine(t, 3, 3, rule)
	lat := eng.Lattice()

	cells := make([]uint8, lat.Volume())
	for _, y := range []int{0, 1, 2} {
		cells[lat.Index([]int{1, y, 1})] = 1
	}
	if err := eng.Seed(cells); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	if err := eng.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if alive := aliveSet(t, eng); len(alive) != 27 {
		t.Fatalf("after 1 step %d cells alive, want all 27", len(alive))
	}

	// Every cell now has 26 living neighbors, outside both ranges.
	if err := eng.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if alive := aliveSet(t, eng); len(alive) != 0 {
		t.Fatalf("after 2 steps %d cells alive, want 0", len(alive))
	}
}

func TestToroidalDiagonalWrap(t *testing.T) {
	rule := core.Rule{SurvivalMin: 0, SurvivalMax: 26, BirthMin: 1, BirthMax: 26}
	eng := newTestEngine(t, 3, 4, rule)
	lat := eng.Lattice()

	cells := make([]uint8, lat.Volume())
	cells[lat.Index([]int{0, 0, 0})] = 1
	if err := eng.Seed(cells); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := eng.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}

	alive := aliveSet(t, eng)
	if !alive[lat.Index([]int{3, 3, 3})] {
		t.Fatal("(3,3,3) must count (0,0,0) as a wrapped diagonal neighbor")
	}
	if !alive[lat.Index([]int{0, 0, 0})] {
		t.Fatal("(0,0,0) must survive with survival range [0,26]")
	}
	if alive[lat.Index([]int{2, 2, 2})] {
		t.Fatal("(2,2,2) is not adjacent to (0,0,0) and must stay dead")
	}
	// The origin's Moore neighborhood plus itself.
	if len(alive) != 27 {
		t.Fatalf("%d living cells after 1 step, want 27", len(alive))
	}
}

// size=1 wraps every axis onto the single cell, so the lone cell sees
// 3^D - 1 copies of itself. Degenerate, but well defined.
func TestSizeOneLattice(t *testing.T) {
	for dim, sum := range map[int]int{3: 26, 4: 80} {
		rule := core.Rule{SurvivalMin: sum, SurvivalMax: sum, BirthMin: sum, BirthMax: sum}
		eng := newTestEngine(t, dim, 1, rule)

		if err := eng.Seed([]uint8{1}); err != nil {
			t.Fatalf("dim %d Seed: %v", dim, err)
		}
		if err := eng.Step(); err != nil {
			t.Fatalf("dim %d Step: %v", dim, err)
		}
		cells, err := eng.State()
		if err != nil {
			t.Fatalf("dim %d State: %v", dim, err)
		}
		if cells[0] != 1 {
			t.Fatalf("dim %d: lone cell with neighbor sum %d must survive", dim, sum)
		}

		// Out of range by one: the wrapped self-views no longer satisfy it.
		if err := eng.UpdateRules(core.Rule{SurvivalMin: sum + 1, SurvivalMax: sum + 1, BirthMin: sum, BirthMax: sum}); err != nil {
			t.Fatalf("dim %d UpdateRules: %v", dim, err)
		}
		if err := eng.Step(); err != nil {
			t.Fatalf("dim %d Step: %v", dim, err)
		}
		cells, err = eng.State()
		if err != nil {
			t.Fatalf("dim %d State: %v", dim, err)
		}
		if cells[0] != 0 {
			t.Fatalf("dim %d: lone cell must die under shifted survival range", dim)
		}
	}
}

func TestUpdateRulesTakesEffectNextStep(t *testing.T) {
	// Births start impossible: the minimum exceeds the 3D neighbor maximum.
	rule := core.Rule{SurvivalMin: 0, SurvivalMax: 26, BirthMin: 27, BirthMax: 27}
	eng := newTestEngine(t, 3, 4, rule)
	lat := eng.Lattice()

	cells := make([]uint8, lat.Volume())
	cells[lat.Index([]int{1, 1, 1})] = 1
	if err := eng.Seed(cells); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if err := eng.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if alive := aliveSet(t, eng); len(alive) != 1 {
		t.Fatalf("no births expected, got %d living cells", len(alive))
	}

	next := core.Rule{SurvivalMin: 0, SurvivalMax: 26, BirthMin: 1, BirthMax: 26}
	// Applying the same rules twice must behave exactly like applying once.
	if err := eng.UpdateRules(next); err != nil {
		t.Fatalf("UpdateRules: %v", err)
	}
	if err := eng.UpdateRules(next); err != nil {
		t.Fatalf("UpdateRules: %v", err)
	}
	if err := eng.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	// The surviving cell plus its full Moore neighborhood.
	if alive := aliveSet(t, eng); len(alive) != 27 {
		t.Fatalf("after rule change %d living cells, want 27", len(alive))
	}
}

func TestSliceMatchesFilteredState(t *testing.T) {
	eng := newTestEngine(t, 4, 4, core.DefaultRule(4))
	if err := eng.SeedRandom(0.3, 7); err != nil {
		t.Fatalf("SeedRandom: %v", err)
	}
	lat := eng.Lattice()
	state, err := eng.State()
	if err != nil {
		t.Fatalf("State: %v", err)
	}

	coord := make([]int, 4)
	for w := 0; w < lat.Size; w++ {
		slice, err := eng.Slice(w)
		if err != nil {
			t.Fatalf("Slice(%d): %v", w, err)
		}
		sub := core.NewLattice(3, lat.Size)
		for idx, c := range state {
			lat.Coords(idx, coord)
			if coord[3] != w {
				continue
			}
			if got := slice[sub.Index(coord[:3])]; got != c {
				t.Fatalf("w=%d: slice[%v] = %d, want %d", w, coord[:3], got, c)
			}
		}
	}
}

func TestSliceClampAndDimension(t *testing.T) {
	eng4 := newTestEngine(t, 4, 4, core.DefaultRule(4))
	if err := eng4.SeedRandom(0.3, 9); err != nil {
		t.Fatalf("SeedRandom: %v", err)
	}
	low, err := eng4.Slice(-10)
	if err != nil {
		t.Fatalf("Slice(-10): %v", err)
	}
	first, err := eng4.Slice(0)
	if err != nil {
		t.Fatalf("Slice(0): %v", err)
	}
	for i := range first {
		if low[i] != first[i] {
			t.Fatal("negative w must clamp to the first layer")
		}
	}

	eng3 := newTestEngine(t, 3, 4, core.DefaultRule(3))
	if _, err := eng3.Slice(0); !errors.Is(err, ErrNotFourD) {
		t.Fatalf("3D slice: got %v, want ErrNotFourD", err)
	}
}

func TestClosedEngineRejectsCalls(t *testing.T) {
	be := compute.NewCPU()
	defer be.Close()
	eng, err := New(be, 3, 4, core.DefaultRule(3))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	eng.Close()

	if err := eng.Step(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Step after Close: got %v, want ErrClosed", err)
	}
	if _, err := eng.State(); !errors.Is(err, ErrClosed) {
		t.Fatalf("State after Close: got %v, want ErrClosed", err)
	}
	if err := eng.Seed(make([]uint8, 64)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Seed after Close: got %v, want ErrClosed", err)
	}
}

// An inverted range never matches, which is a legal "nothing happens" rule.
func TestInvertedRuleRangeIsEmptyNotError(t *testing.T) {
	rule := core.Rule{SurvivalMin: 5, SurvivalMax: 2, BirthMin: 9, BirthMax: 3}
	eng := newTestEngine(t, 3, 4, rule)
	if err := eng.SeedRandom(0.5, 3); err != nil {
		t.Fatalf("SeedRandom: %v", err)
	}
	if err := eng.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if alive := aliveSet(t, eng); len(alive) != 0 {
		t.Fatalf("inverted ranges must kill everything, %d cells alive", len(alive))
	}
}
