package address

import (
	"errors"
	"strings"
	"testing"
)

func TestParse_RoundTrip(t *testing.T) {
	a := FromSeed("alice")
	got, err := Parse(a.String())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got != a {
		t.Errorf("expected %s, got %s", a, got)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, s := range []string{"", "0OIl", "abc", strings.Repeat("1", 40)} {
		if _, err := Parse(s); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("Parse(%q): expected ErrInvalidAddress, got %v", s, err)
		}
	}
}

func TestFindProgramAddress_OffCurveAndDeterministic(t *testing.T) {
	mint := FromSeed("usdc")

	a1, err := Vault(DefaultProgramID, mint, 0)
	if err != nil {
		t.Fatalf("Vault failed: %v", err)
	}
	a2, err := Vault(DefaultProgramID, mint, 0)
	if err != nil {
		t.Fatalf("Vault failed: %v", err)
	}
	if a1 != a2 {
		t.Error("derivation must be deterministic")
	}
	if IsOnCurve(a1[:]) {
		t.Error("derived address must be off curve")
	}

	other, err := Vault(DefaultProgramID, mint, 1)
	if err != nil {
		t.Fatalf("Vault failed: %v", err)
	}
	if other == a1 {
		t.Error("different index must derive a different vault")
	}
}

func TestDerivedAddressesDistinct(t *testing.T) {
	mint := FromSeed("usdc")
	vault, err := Vault(DefaultProgramID, mint, 0)
	if err != nil {
		t.Fatalf("Vault failed: %v", err)
	}
	sharesMint, err := SharesMint(DefaultProgramID, vault)
	if err != nil {
		t.Fatalf("SharesMint failed: %v", err)
	}
	strategy, err := Strategy(DefaultProgramID, vault, 0)
	if err != nil {
		t.Fatalf("Strategy failed: %v", err)
	}
	vaultTokens, err := TokenAccount(DefaultProgramID, vault, mint)
	if err != nil {
		t.Fatalf("TokenAccount failed: %v", err)
	}
	strategyTokens, err := TokenAccount(DefaultProgramID, strategy, mint)
	if err != nil {
		t.Fatalf("TokenAccount failed: %v", err)
	}

	seen := map[Address]string{}
	for name, a := range map[string]Address{
		"vault": vault, "shares": sharesMint, "strategy": strategy,
		"vault_tokens": vaultTokens, "strategy_tokens": strategyTokens,
	} {
		if prev, dup := seen[a]; dup {
			t.Errorf("%s collides with %s", name, prev)
		}
		seen[a] = name
	}
}

func TestFindProgramAddress_SeedLimits(t *testing.T) {
	long := make([]byte, 33)
	if _, _, err := FindProgramAddress([][]byte{long}, DefaultProgramID); !errors.Is(err, ErrMaxSeedLength) {
		t.Errorf("expected ErrMaxSeedLength, got %v", err)
	}

	many := make([][]byte, 16)
	if _, _, err := FindProgramAddress(many, DefaultProgramID); !errors.Is(err, ErrTooManySeeds) {
		t.Errorf("expected ErrTooManySeeds, got %v", err)
	}
}
