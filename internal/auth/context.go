package auth

import (
	"context"
	"strings"
)

type subjectContextKey struct{}

type subject struct {
	id   string
	role Role
}

// ContextWithSubject attaches the verified subject to the context.
func ContextWithSubject(ctx context.Context, id string, role Role) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subject{id: strings.TrimSpace(id), role: role})
}

// SubjectFromContext returns the subject attached by an access gate.
func SubjectFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(subjectContextKey{}).(subject)
	if !ok || v.id == "" {
		return "", false
	}
	return v.id, true
}

// RoleFromContext returns the role of the subject attached by an access gate.
func RoleFromContext(ctx context.Context) (Role, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(subjectContextKey{}).(subject)
	if !ok || v.id == "" {
		return "", false
	}
	return v.role, true
}
