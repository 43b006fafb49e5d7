package strategy

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSimpleStrategy_DepositWithdraw(t *testing.T) {
	ctx := context.Background()
	deps, bank := fundedDeps(t, 1000)
	capacity := uint64(500)
	s := NewSimpleStrategy(testBinding(), deps, &capacity)

	avail, err := s.AvailableDeposit(ctx)
	if err != nil || avail != 500 {
		t.Fatalf("expected 500 available, got %d (%v)", avail, err)
	}

	got, err := s.Deposit(ctx, 400)
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}
	if got != 400 {
		t.Errorf("expected 400 deposited, got %d", got)
	}
	if avail, _ := s.AvailableDeposit(ctx); avail != 100 {
		t.Errorf("expected 100 headroom, got %d", avail)
	}

	if _, err := s.Withdraw(ctx, 401); !errors.Is(err, ErrInsufficientHoldings) {
		t.Errorf("expected ErrInsufficientHoldings, got %v", err)
	}
	if _, err := s.Withdraw(ctx, 150); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}

	vault, _ := bank.Balance(ctx, "vault-tokens")
	total, _ := s.TotalAssets(ctx)
	if vault != 750 || total != 250 {
		t.Errorf("expected vault 750 / strategy 250, got %d / %d", vault, total)
	}
}

func TestSimpleStrategy_HarvestAndSlash(t *testing.T) {
	ctx := context.Background()
	deps, _ := fundedDeps(t, 1000)
	s := NewSimpleStrategy(testBinding(), deps, nil)
	_, _ = s.Deposit(ctx, 800)

	if err := s.Slash(ctx, 200); err != nil {
		t.Fatalf("Slash failed: %v", err)
	}
	if total, _ := s.TotalAssets(ctx); total != 600 {
		t.Errorf("expected 600 after slash, got %d", total)
	}

	if err := s.Harvest(ctx, 50); err != nil {
		t.Fatalf("Harvest failed: %v", err)
	}
	if total, _ := s.TotalAssets(ctx); total != 650 {
		t.Errorf("expected 650 after harvest, got %d", total)
	}
}

func TestTimeLockedStrategy_Unlocks(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	deps, _ := fundedDeps(t, 1000)
	deps.Now = func() time.Time { return now }
	s := NewTimeLockedStrategy(testBinding(), deps, nil, time.Hour)

	_, _ = s.Deposit(ctx, 300)
	now = now.Add(30 * time.Minute)
	_, _ = s.Deposit(ctx, 200)

	if avail, _ := s.AvailableWithdraw(ctx); avail != 0 {
		t.Errorf("expected nothing unlocked, got %d", avail)
	}
	if _, err := s.Withdraw(ctx, 1); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}

	now = now.Add(31 * time.Minute)
	if avail, _ := s.AvailableWithdraw(ctx); avail != 300 {
		t.Errorf("expected first tranche unlocked, got %d", avail)
	}
	if _, err := s.Withdraw(ctx, 100); err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if avail, _ := s.AvailableWithdraw(ctx); avail != 200 {
		t.Errorf("expected 200 left unlocked, got %d", avail)
	}
	if locked := s.Locked(); locked != 200 {
		t.Errorf("expected 200 locked, got %d", locked)
	}
}

func TestTimeLockedStrategy_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	deps, _ := fundedDeps(t, 1000)
	s := NewTimeLockedStrategy(testBinding(), deps, nil, time.Hour)
	_, _ = s.Deposit(ctx, 100)

	restore := s.Snapshot()
	s.mu.Lock()
	s.tranches = append(s.tranches, tranche{amount: 50, unlockAt: time.Now().Add(time.Hour)})
	s.mu.Unlock()
	restore()

	if locked := s.Locked(); locked != 100 {
		t.Errorf("expected 100 locked after restore, got %d", locked)
	}
}

func TestAMMStrategy_Slippage(t *testing.T) {
	ctx := context.Background()
	deps, bank := fundedDeps(t, 1000)
	s := NewAMMStrategy(testBinding(), deps, nil, 100) // 1%

	_, _ = s.Deposit(ctx, 1000)
	got, err := s.Withdraw(ctx, 500)
	if err != nil {
		t.Fatalf("Withdraw failed: %v", err)
	}
	if got != 495 {
		t.Errorf("expected 495 delivered, got %d", got)
	}

	vault, _ := bank.Balance(ctx, "vault-tokens")
	total, _ := s.TotalAssets(ctx)
	if vault != 495 || total != 500 {
		t.Errorf("expected vault 495 / pool 500, got %d / %d", vault, total)
	}
	if supply := bank.Supply("usdc"); supply != 995 {
		t.Errorf("expected slippage burned, supply %d", supply)
	}
}
