package auth

import (
	"context"
	"strings"
)

// Blacklist is the deny-set attached to a generated document. The surrounding
// service evaluates it before allowing download or delete; the core only
// stores and exposes it.
type Blacklist struct {
	Users       map[string]struct{}
	Departments map[string]struct{}
}

// NewBlacklist builds a normalized blacklist from raw lists.
func NewBlacklist(users, departments []string) Blacklist {
	b := Blacklist{
		Users:       make(map[string]struct{}, len(users)),
		Departments: make(map[string]struct{}, len(departments)),
	}
	for _, u := range users {
		if u = strings.TrimSpace(u); u != "" {
			b.Users[u] = struct{}{}
		}
	}
	for _, d := range departments {
		if d = strings.TrimSpace(strings.ToLower(d)); d != "" {
			b.Departments[d] = struct{}{}
		}
	}
	return b
}

// Blocks reports whether the given identity is denied by this blacklist.
func (b Blacklist) Blocks(userID, department string) bool {
	if _, ok := b.Users[strings.TrimSpace(userID)]; ok {
		return true
	}
	department = strings.TrimSpace(strings.ToLower(department))
	if department == "" {
		return false
	}
	_, ok := b.Departments[department]
	return ok
}

// Allowed evaluates the blacklist against the identity carried in ctx.
// A context without identity is allowed; denying anonymous access is the
// API boundary's job, not the blacklist's.
func Allowed(ctx context.Context, users, departments []string) bool {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return true
	}
	department, _ := DepartmentFromContext(ctx)
	return !NewBlacklist(users, departments).Blocks(userID, department)
}
