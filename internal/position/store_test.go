package position

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tradeforge/gexpin/internal/strategy"
)

func newPosition(orderID, market string) Position {
	return Position{
		OrderID:       orderID,
		Market:        market,
		Strategy:      strategy.IronCondor,
		Confidence:    strategy.High,
		Strikes:       []float64{5965, 5975, 6015, 6025},
		SpreadWidth:   10,
		Quantity:      1,
		EntryCredit:   1.35,
		EntryTime:     time.Date(2025, 12, 10, 10, 2, 0, 0, time.UTC),
		EntryDistance: 15,
		TargetPrice:   0.675,
		StopPrice:     1.485,
	}
}

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "state", "positions.json"))
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := tempStore(t)
	positions, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(positions) != 0 {
		t.Fatalf("expected empty store, got %d positions", len(positions))
	}
}

func TestAppendRoundTrip(t *testing.T) {
	s := tempStore(t)
	want := newPosition("ord-1", "SPX")
	if err := s.Append(want); err != nil {
		t.Fatalf("Append: %v", err)
	}

	positions, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
	got := positions[0]
	if got.OrderID != want.OrderID || got.EntryCredit != want.EntryCredit {
		t.Errorf("round trip changed identity: %+v", got)
	}
	// Strikes and credit must survive persistence exactly.
	for i, k := range want.Strikes {
		if got.Strikes[i] != k {
			t.Errorf("strike %d drifted: %v != %v", i, got.Strikes[i], k)
		}
	}
	if !got.EntryTime.Equal(want.EntryTime) {
		t.Errorf("entry time drifted: %v != %v", got.EntryTime, want.EntryTime)
	}
}

func TestReplaceLeavesNoTempFile(t *testing.T) {
	s := tempStore(t)
	if err := s.Replace([]Position{newPosition("ord-1", "SPX")}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if _, err := os.Stat(s.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind after replace")
	}
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("store file missing: %v", err)
	}
}

func TestUpdatePersistsLatches(t *testing.T) {
	s := tempStore(t)
	p := newPosition("ord-1", "SPX")
	if err := s.Append(p); err != nil {
		t.Fatalf("Append: %v", err)
	}

	p.PeakProfitPct = 0.55
	p.TrailingArmed = true
	if err := s.Update(p); err != nil {
		t.Fatalf("Update: %v", err)
	}

	positions, _ := s.Load()
	if !positions[0].TrailingArmed || positions[0].PeakProfitPct != 0.55 {
		t.Errorf("latches not persisted: %+v", positions[0])
	}
}

func TestUpdateUnknownOrder(t *testing.T) {
	s := tempStore(t)
	if err := s.Update(newPosition("ghost", "SPX")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	s := tempStore(t)
	if err := s.Append(newPosition("ord-1", "SPX")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := s.Append(newPosition("ord-2", "NDX")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := s.Remove("ord-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	positions, _ := s.Load()
	if len(positions) != 1 || positions[0].OrderID != "ord-2" {
		t.Fatalf("unexpected positions after remove: %+v", positions)
	}

	if err := s.Remove("ord-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
}

func TestCountForMarket(t *testing.T) {
	s := tempStore(t)
	for _, p := range []Position{
		newPosition("a", "SPX"),
		newPosition("b", "SPX"),
		newPosition("c", "NDX"),
	} {
		if err := s.Append(p); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	n, err := s.CountForMarket("SPX")
	if err != nil {
		t.Fatalf("CountForMarket: %v", err)
	}
	if n != 2 {
		t.Errorf("SPX count = %d, want 2", n)
	}
}

func TestRecordProfitHighWater(t *testing.T) {
	p := newPosition("ord-1", "SPX")
	p.RecordProfit(0.20)
	p.RecordProfit(0.10)
	if p.PeakProfitPct != 0.20 {
		t.Errorf("peak = %.2f, want 0.20", p.PeakProfitPct)
	}
	p.RecordProfit(0.35)
	if p.PeakProfitPct != 0.35 {
		t.Errorf("peak = %.2f, want 0.35", p.PeakProfitPct)
	}
}
