package shares

import (
	"errors"
	"math"
	"testing"

	"solana-vault-ledger/internal/domain"
)

func TestToShares_Bootstrap(t *testing.T) {
	s := Supply{}
	for _, x := range []uint64{0, 1, 1000, math.MaxUint64} {
		got, err := ToShares(s, x)
		if err != nil {
			t.Fatalf("ToShares(%d) failed: %v", x, err)
		}
		if got != x {
			t.Errorf("ToShares(%d) on empty vault = %d, want %d", x, got, x)
		}
		back, err := ToUnderlying(s, x)
		if err != nil {
			t.Fatalf("ToUnderlying(%d) failed: %v", x, err)
		}
		if back != x {
			t.Errorf("ToUnderlying(%d) on empty vault = %d, want %d", x, back, x)
		}
	}
}

func TestToShares_RoundsDown(t *testing.T) {
	s := Supply{TotalShares: 1000, TotalAssets: 800}

	got, err := ToShares(s, 500)
	if err != nil {
		t.Fatalf("ToShares failed: %v", err)
	}
	if got != 625 {
		t.Errorf("expected 625, got %d", got)
	}

	got, err = ToShares(s, 1)
	if err != nil {
		t.Fatalf("ToShares failed: %v", err)
	}
	if got != 1 {
		t.Errorf("expected 1 (1.25 floored), got %d", got)
	}

	up, err := ToSharesUp(s, 1)
	if err != nil {
		t.Fatalf("ToSharesUp failed: %v", err)
	}
	if up != 2 {
		t.Errorf("expected 2 (1.25 ceiled), got %d", up)
	}
}

func TestToShares_NoAssetsWithOutstandingShares(t *testing.T) {
	s := Supply{TotalShares: 1000, TotalAssets: 0}

	got, err := ToShares(s, 500)
	if err != nil {
		t.Fatalf("ToShares failed: %v", err)
	}
	if got != 0 {
		t.Errorf("expected 0, got %d", got)
	}

	assets, err := ToUnderlying(s, 1000)
	if err != nil {
		t.Fatalf("ToUnderlying failed: %v", err)
	}
	if assets != 0 {
		t.Errorf("expected 0, got %d", assets)
	}
}

func TestRoundTripNeverGains(t *testing.T) {
	supplies := []Supply{
		{TotalShares: 1000, TotalAssets: 1000},
		{TotalShares: 1000, TotalAssets: 800},
		{TotalShares: 3, TotalAssets: 10},
		{TotalShares: 10, TotalAssets: 3},
		{TotalShares: 999_999_937, TotalAssets: 1_000_000_007},
		{TotalShares: math.MaxUint64, TotalAssets: math.MaxUint64 - 1},
	}
	amounts := []uint64{0, 1, 2, 3, 7, 99, 1000, 123_456_789}

	for _, s := range supplies {
		for _, a := range amounts {
			sh, err := ToShares(s, a)
			if err != nil {
				t.Fatalf("ToShares(%+v, %d) failed: %v", s, a, err)
			}
			back, err := ToUnderlying(s, sh)
			if err != nil {
				t.Fatalf("ToUnderlying(%+v, %d) failed: %v", s, sh, err)
			}
			if back > a {
				t.Errorf("round trip gained: supply=%+v assets=%d shares=%d back=%d", s, a, sh, back)
			}
		}
	}
}

func TestMulDiv_WideIntermediate(t *testing.T) {
	got, err := MulDiv(math.MaxUint64, math.MaxUint64, math.MaxUint64)
	if err != nil {
		t.Fatalf("MulDiv failed: %v", err)
	}
	if got != math.MaxUint64 {
		t.Errorf("expected MaxUint64, got %d", got)
	}

	_, err = MulDiv(math.MaxUint64, 2, 1)
	if !errors.Is(err, domain.ErrMathOverflow) {
		t.Errorf("expected ErrMathOverflow, got %v", err)
	}

	_, err = MulDiv(1, 1, 0)
	if !errors.Is(err, domain.ErrMathOverflow) {
		t.Errorf("expected ErrMathOverflow on zero divisor, got %v", err)
	}
}

func TestMulDivUp(t *testing.T) {
	tests := []struct {
		a, b, d uint64
		want    uint64
	}{
		{10, 3, 3, 10},
		{10, 1, 3, 4},
		{0, 5, 7, 0},
		{1, 1, 1, 1},
	}
	for _, tt := range tests {
		got, err := MulDivUp(tt.a, tt.b, tt.d)
		if err != nil {
			t.Fatalf("MulDivUp(%d,%d,%d) failed: %v", tt.a, tt.b, tt.d, err)
		}
		if got != tt.want {
			t.Errorf("MulDivUp(%d,%d,%d) = %d, want %d", tt.a, tt.b, tt.d, got, tt.want)
		}
	}
}

func TestCheckedArithmetic(t *testing.T) {
	if _, err := Sub(1, 2); !errors.Is(err, domain.ErrMathOverflow) {
		t.Errorf("expected underflow error, got %v", err)
	}
	if _, err := Add(math.MaxUint64, 1); !errors.Is(err, domain.ErrMathOverflow) {
		t.Errorf("expected overflow error, got %v", err)
	}
	if v, err := Sub(5, 5); err != nil || v != 0 {
		t.Errorf("Sub(5,5) = %d, %v", v, err)
	}
}

func TestBps(t *testing.T) {
	if got := Bps(1000, 250); got != 25 {
		t.Errorf("expected 25, got %d", got)
	}
	if got := Bps(1000, domain.MaxBps); got != 1000 {
		t.Errorf("expected 1000, got %d", got)
	}
	if got := Bps(3, 1); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}
