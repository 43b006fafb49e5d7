package roles

import (
	"context"
	"testing"
)

func TestRegistry_GrantRevoke(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()

	ok, _ := r.HasRole(ctx, "alice", VaultsAdmin)
	if ok {
		t.Fatal("expected no role before grant")
	}

	r.Grant("alice", VaultsAdmin)
	r.Grant("alice", KYCVerified)
	if ok, _ := r.HasRole(ctx, "alice", VaultsAdmin); !ok {
		t.Error("expected VAULTS_ADMIN after grant")
	}
	if got := r.RolesOf("alice"); len(got) != 2 || got[0] != KYCVerified {
		t.Errorf("unexpected roles: %v", got)
	}

	r.Revoke("alice", VaultsAdmin)
	if ok, _ := r.HasRole(ctx, "alice", VaultsAdmin); ok {
		t.Error("expected VAULTS_ADMIN revoked")
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" reporting_manager ")
	if err != nil {
		t.Fatalf("ParseRole failed: %v", err)
	}
	if r != ReportingManager {
		t.Errorf("expected REPORTING_MANAGER, got %s", r)
	}
	if _, err := ParseRole("SUPERUSER"); err == nil {
		t.Error("expected error for unknown role")
	}
}
