package middleware

import "net/http"

// RequireAuthenticated guards a route behind authentication only.
func RequireAuthenticated(store SessionSource, loginPath string) func(http.Handler) http.Handler {
	return Guard(store, Options{LoginPath: loginPath})
}

// RequireRoles guards a route behind authentication plus an any-of role
// requirement.
func RequireRoles(store SessionSource, loginPath string, roles ...string) func(http.Handler) http.Handler {
	return Guard(store, Options{LoginPath: loginPath, RequiredRoles: roles})
}
