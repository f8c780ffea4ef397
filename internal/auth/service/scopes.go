package service

import (
	"slices"
	"strings"
)

// Scope names with behavior attached to them.
const (
	ScopeOpenID        = "openid"
	ScopeOfflineAccess = "offline_access"
)

func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// HasScope reports whether the scope list contains the given scope.
func HasScope(scopes []string, scope string) bool {
	return slices.Contains(scopes, scope)
}
