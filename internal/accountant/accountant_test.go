package accountant

import (
	"context"
	"errors"
	"testing"
)

func TestGeneric_Fees(t *testing.T) {
	ctx := context.Background()
	g, err := NewGeneric("acct", "treasury", 50, 1000)
	if err != nil {
		t.Fatalf("NewGeneric failed: %v", err)
	}

	fee, _ := g.AssessEntryFee(ctx, 10_000)
	if fee != 50 {
		t.Errorf("expected entry fee 50, got %d", fee)
	}

	fee, _ = g.AssessPerformanceFee(ctx, 2_000)
	if fee != 200 {
		t.Errorf("expected performance fee 200, got %d", fee)
	}
	fee, _ = g.AssessPerformanceFee(ctx, 1_000)
	if fee != 100 {
		t.Errorf("expected performance fee 100, got %d", fee)
	}

	if accrued := g.Accrual().AccruedFees; accrued != 300 {
		t.Errorf("expected 300 accrued, got %d", accrued)
	}
	if g.FeeRecipient() != "treasury" {
		t.Errorf("unexpected recipient %s", g.FeeRecipient())
	}
}

func TestGeneric_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	g, _ := NewGeneric("acct", "treasury", 0, 1000)

	restore := g.Snapshot()
	_, _ = g.AssessPerformanceFee(ctx, 5_000)
	restore()

	if accrued := g.Accrual().AccruedFees; accrued != 0 {
		t.Errorf("expected accrual restored to 0, got %d", accrued)
	}
}

func TestGeneric_Validation(t *testing.T) {
	if _, err := NewGeneric("acct", "", 0, 0); !errors.Is(err, ErrMissingRecipient) {
		t.Errorf("expected ErrMissingRecipient, got %v", err)
	}
	if _, err := NewGeneric("acct", "treasury", 10_000, 0); !errors.Is(err, ErrInvalidFee) {
		t.Errorf("expected ErrInvalidFee, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	g, _ := NewGeneric("b", "treasury", 0, 0)
	r.Register("b", g)
	a, _ := NewGeneric("a", "treasury", 0, 0)
	r.Register("a", a)

	if _, err := r.Get("missing"); !errors.Is(err, ErrAccountantNotFound) {
		t.Errorf("expected ErrAccountantNotFound, got %v", err)
	}
	accruals := r.Accruals()
	if len(accruals) != 2 || accruals[0].Accountant != "a" {
		t.Errorf("unexpected accruals: %+v", accruals)
	}
}
