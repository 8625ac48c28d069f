package reconciliation

import (
	"testing"

	"github.com/shopledger/payoutrecon/internal/domain"
)

func TestGreedyMatcher(t *testing.T) {
	tests := []struct {
		name        string
		gross       string
		orders      []domain.Order
		wantIDs     []string
		wantRunning string
	}{
		{
			name:  "stops before exceeding the cutoff",
			gross: "100",
			orders: []domain.Order{
				shopOrder("o1", "2024-03-10", "40"),
				shopOrder("o2", "2024-03-10", "40"),
				shopOrder("o3", "2024-03-10", "40"),
			},
			wantIDs:     []string{"o1", "o2"},
			wantRunning: "80",
		},
		{
			name:  "does not skip past an overshooting order",
			gross: "100",
			orders: []domain.Order{
				shopOrder("o1", "2024-03-10", "50"),
				shopOrder("o2", "2024-03-09", "70"),
				shopOrder("o3", "2024-03-08", "10"),
			},
			wantIDs:     []string{"o1"},
			wantRunning: "50",
		},
		{
			name:  "admits exactly the cutoff",
			gross: "100",
			orders: []domain.Order{
				shopOrder("o1", "2024-03-10", "60"),
				shopOrder("o2", "2024-03-10", "50"),
			},
			wantIDs:     []string{"o1", "o2"},
			wantRunning: "110",
		},
		{
			name:  "nearest orders first",
			gross: "30",
			orders: []domain.Order{
				shopOrder("far", "2024-03-06", "20"),
				shopOrder("near", "2024-03-10", "20"),
				shopOrder("mid", "2024-03-08", "5"),
			},
			wantIDs:     []string{"near", "mid"},
			wantRunning: "25",
		},
		{
			name:        "no candidates",
			gross:       "100",
			wantRunning: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &GreedyMatcher{Tolerance: dec("0.10")}
			sel := m.Match(payout("p1", "2024-03-10", tt.gross), tt.orders)

			if got := orderIDs(sel.Orders); !equalIDs(got, tt.wantIDs) {
				t.Errorf("Expected %v, got %v", tt.wantIDs, got)
			}
			if !sel.RunningTotal.Equal(dec(tt.wantRunning)) {
				t.Errorf("Expected running total %s, got %s", tt.wantRunning, sel.RunningTotal)
			}
			if sel.RunningTotal.GreaterThan(sel.Cutoff) {
				t.Errorf("Running total %s exceeds cutoff %s", sel.RunningTotal, sel.Cutoff)
			}
		})
	}
}

func TestGreedyMatcherDoesNotReorderInput(t *testing.T) {
	orders := []domain.Order{
		shopOrder("far", "2024-03-06", "20"),
		shopOrder("near", "2024-03-10", "20"),
	}
	m := &GreedyMatcher{Tolerance: dec("0.10")}
	m.Match(payout("p1", "2024-03-10", "100"), orders)

	if orders[0].ID != "far" {
		t.Errorf("Expected candidates slice untouched, got %s first", orders[0].ID)
	}
}

func TestExactMatcherFindsCloserSubset(t *testing.T) {
	log, _ := newTestLogger()
	cfg := DefaultConfig()
	cfg.Strategy = StrategyExact

	orders := []domain.Order{
		shopOrder("o1", "2024-03-10", "70"),
		shopOrder("o2", "2024-03-10", "40"),
		shopOrder("o3", "2024-03-10", "30"),
	}
	p := payout("p1", "2024-03-10", "100")

	greedy := NewMatcher(DefaultConfig(), log).Match(p, orders)
	if !greedy.RunningTotal.Equal(dec("110")) {
		t.Fatalf("Expected greedy total 110, got %s", greedy.RunningTotal)
	}

	exact := NewMatcher(cfg, log).Match(p, orders)
	if got := orderIDs(exact.Orders); !equalIDs(got, []string{"o1", "o3"}) {
		t.Errorf("Expected [o1 o3], got %v", got)
	}
	if !exact.RunningTotal.Equal(dec("100")) {
		t.Errorf("Expected exact total 100, got %s", exact.RunningTotal)
	}
	if exact.Strategy != StrategyExact {
		t.Errorf("Expected strategy exact, got %s", exact.Strategy)
	}
}

func TestExactMatcherKeepsZeroTotalOrders(t *testing.T) {
	log, _ := newTestLogger()
	m := &ExactMatcher{
		Tolerance:     dec("0.10"),
		MaxCandidates: 40,
		MaxCents:      1_000_000,
		Fallback:      &GreedyMatcher{Tolerance: dec("0.10")},
		Log:           log,
	}

	orders := []domain.Order{
		shopOrder("free", "2024-03-10", "0"),
		shopOrder("o1", "2024-03-09", "12.34"),
		shopOrder("big", "2024-03-09", "500"),
	}
	sel := m.Match(payout("p1", "2024-03-10", "12.34"), orders)

	if got := orderIDs(sel.Orders); !equalIDs(got, []string{"free", "o1"}) {
		t.Errorf("Expected [free o1], got %v", got)
	}
	if !sel.RunningTotal.Equal(dec("12.34")) {
		t.Errorf("Expected total 12.34, got %s", sel.RunningTotal)
	}
}

func TestExactMatcherFallsBackWhenUnbounded(t *testing.T) {
	log, hook := newTestLogger()
	m := &ExactMatcher{
		Tolerance:     dec("0.10"),
		MaxCandidates: 2,
		MaxCents:      1_000_000,
		Fallback:      &GreedyMatcher{Tolerance: dec("0.10")},
		Log:           log,
	}

	orders := []domain.Order{
		shopOrder("o1", "2024-03-10", "70"),
		shopOrder("o2", "2024-03-10", "40"),
		shopOrder("o3", "2024-03-10", "30"),
	}
	sel := m.Match(payout("p1", "2024-03-10", "100"), orders)

	if sel.Strategy != StrategyHeuristic {
		t.Errorf("Expected heuristic fallback, got %s", sel.Strategy)
	}
	if len(hook.Entries) != 1 {
		t.Errorf("Expected one fallback warning, got %d log entries", len(hook.Entries))
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", StrategyHeuristic, false},
		{"heuristic", StrategyHeuristic, false},
		{" EXACT ", StrategyExact, false},
		{"random", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
