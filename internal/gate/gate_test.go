package gate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/go-crm/internal/gate"
)

func TestPermission_NewPermission(t *testing.T) {
	perm := gate.NewPermission("quotation", gate.ActionCreate)
	if perm != "quotation:create" {
		t.Errorf("expected 'quotation:create', got '%s'", perm)
	}
}

func TestPermission_Parse(t *testing.T) {
	res, act := gate.Permission("agreement:view").Parse()
	if res != "agreement" || act != gate.ActionView {
		t.Errorf("unexpected parse result %q %q", res, act)
	}
	res, act = gate.Permission("invalid").Parse()
	if res != "" || act != "" {
		t.Errorf("expected empty strings, got '%s' and '%s'", res, act)
	}
}

func TestPermission_Matches(t *testing.T) {
	tests := []struct {
		granted   gate.Permission
		requested gate.Permission
		want      bool
	}{
		{"client:create", "client:create", true},
		{"client:create", "client:delete", false},
		{"client:create", "quotation:create", false},
		{"client:*", "client:delete", true},
		{"client:*", "quotation:view", false},
		{gate.PermissionSuperAdmin, "agreement:delete", true},
		{"invalid", "invalid:view", false},
	}
	for _, tt := range tests {
		if got := tt.granted.Matches(tt.requested); got != tt.want {
			t.Errorf("%s.Matches(%s) = %v, want %v", tt.granted, tt.requested, got, tt.want)
		}
	}
}

func TestStaticProfile_HasPermission(t *testing.T) {
	profile := gate.NewStaticProfile(1, "sales",
		gate.NewPermission(gate.ResourceQuotation, gate.WildcardAll),
		gate.NewPermission(gate.ResourceProduct, gate.ActionView),
	)
	if !profile.HasPermission("quotation:delete") {
		t.Error("should have quotation:delete through wildcard")
	}
	if profile.HasPermission("product:update") {
		t.Error("should not have product:update")
	}
}

type countingResolver struct {
	calls    int
	profiles map[uint]gate.Profile
	err      error
}

func (r *countingResolver) Resolve(_ context.Context, userID uint) (gate.Profile, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.profiles[userID], nil
}

func TestCachedResolver_CachesAndInvalidates(t *testing.T) {
	inner := &countingResolver{profiles: map[uint]gate.Profile{
		1: gate.NewStaticProfile(1, "viewer"),
	}}
	cached := gate.NewCachedResolver(inner, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := cached.Resolve(ctx, 1)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Name() != "viewer" {
			t.Fatalf("expected viewer, got %s", p.Name())
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}

	inner.profiles[1] = gate.NewStaticProfile(2, "admin", gate.PermissionSuperAdmin)
	cached.Invalidate(1)
	p, _ := cached.Resolve(ctx, 1)
	if p.Name() != "admin" {
		t.Errorf("expected admin after invalidate, got %s", p.Name())
	}

	cached.InvalidateAll()
	_, _ = cached.Resolve(ctx, 1)
	if inner.calls != 3 {
		t.Errorf("expected 3 inner calls, got %d", inner.calls)
	}
}

func TestCachedResolver_CachesMissingProfile(t *testing.T) {
	inner := &countingResolver{profiles: map[uint]gate.Profile{}}
	cached := gate.NewCachedResolver(inner, 16, time.Minute)

	for i := 0; i < 2; i++ {
		p, err := cached.Resolve(context.Background(), 9)
		if err != nil || p != nil {
			t.Fatalf("expected nil profile, got %v %v", p, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.calls)
	}
}

func TestCachedResolver_Expires(t *testing.T) {
	inner := &countingResolver{profiles: map[uint]gate.Profile{1: gate.NewStaticProfile(1, "viewer")}}
	cached := gate.NewCachedResolver(inner, 16, 20*time.Millisecond)

	_, _ = cached.Resolve(context.Background(), 1)
	time.Sleep(60 * time.Millisecond)
	_, _ = cached.Resolve(context.Background(), 1)
	if inner.calls != 2 {
		t.Errorf("expected entry to expire, inner calls = %d", inner.calls)
	}
}

func TestAuthorize(t *testing.T) {
	inner := &countingResolver{profiles: map[uint]gate.Profile{
		1: gate.NewStaticProfile(1, "viewer", "client:view"),
	}}
	ctx := context.Background()

	if err := gate.Authorize(ctx, inner, 0, "client", gate.ActionView); !errors.Is(err, gate.ErrUnauthorized) {
		t.Errorf("anonymous: expected ErrUnauthorized, got %v", err)
	}
	if err := gate.Authorize(ctx, inner, 1, "client", gate.ActionView); err != nil {
		t.Errorf("expected allowed, got %v", err)
	}
	if err := gate.Authorize(ctx, inner, 1, "client", gate.ActionDelete); !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := gate.Authorize(ctx, inner, 2, "client", gate.ActionView); !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("no profile: expected ErrForbidden, got %v", err)
	}

	inner.err = errors.New("db down")
	if err := gate.Authorize(ctx, inner, 1, "client", gate.ActionView); err == nil {
		t.Error("expected resolver error")
	}
}
