// Package roles answers whether an account holds a permission role.
package roles

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Role is a named permission.
type Role string

// Roles
const (
	RolesAdmin        Role = "ROLES_ADMIN"
	VaultsAdmin       Role = "VAULTS_ADMIN"
	StrategiesManager Role = "STRATEGIES_MANAGER"
	ReportingManager  Role = "REPORTING_MANAGER"
	AccountantAdmin   Role = "ACCOUNTANT_ADMIN"
	KYCProvider       Role = "KYC_PROVIDER"
	KYCVerified       Role = "KYC_VERIFIED"
)

// All lists every known role.
var All = []Role{RolesAdmin, VaultsAdmin, StrategiesManager, ReportingManager, AccountantAdmin, KYCProvider, KYCVerified}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range All {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Checker answers role membership.
type Checker interface {
	HasRole(ctx context.Context, account string, role Role) (bool, error)
}

// Registry is an in-memory Checker with grant and revoke.
type Registry struct {
	mu     sync.RWMutex
	grants map[string]map[Role]struct{}
}

var _ Checker = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{grants: make(map[string]map[Role]struct{})}
}

// HasRole reports whether account holds role.
func (r *Registry) HasRole(_ context.Context, account string, role Role) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.grants[account][role]
	return ok, nil
}

// Grant gives role to account.
func (r *Registry) Grant(account string, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.grants[account]
	if !ok {
		set = make(map[Role]struct{})
		r.grants[account] = set
	}
	set[role] = struct{}{}
}

// Revoke removes role from account.
func (r *Registry) Revoke(account string, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants[account], role)
	if len(r.grants[account]) == 0 {
		delete(r.grants, account)
	}
}

// RolesOf lists the roles held by account in sorted order.
func (r *Registry) RolesOf(account string) []Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Role, 0, len(r.grants[account]))
	for role := range r.grants[account] {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
