// Package gate models "resource:action" permissions grouped into profiles and
// resolves the profile of the caller, with a bounded expiring cache in front
// of the profile store.
package gate

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnauthorized means no caller is attached to the request.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden means the caller's profile lacks the permission.
	ErrForbidden = errors.New("forbidden")
)

// Action is an operation on a resource type.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

// Resource types guarded by the gate.
const (
	ResourceClient        = "client"
	ResourceClientRequest = "client_request"
	ResourceRelationship  = "relationship"
	ResourceRequirement   = "requirement"
	ResourceFeature       = "feature"
	ResourceProduct       = "product"
	ResourceQuotation     = "quotation"
	ResourceAgreement     = "agreement"
	ResourceUser          = "user"
)

// Permission is encoded as "resource:action". Either side may be "*".
type Permission string

const (
	WildcardAll                     = "*"
	PermissionSuperAdmin Permission = "*:*"
)

// NewPermission builds a permission from its parts.
func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// Parse splits the permission; malformed values yield empty strings.
func (p Permission) Parse() (resourceType string, action Action) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, Action(act)
}

// Matches reports whether p grants requested, honouring wildcards.
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionSuperAdmin || p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, _ := requested.Parse()
	return res != "" && res == reqRes && string(act) == WildcardAll
}

// Profile is a named permission set.
type Profile interface {
	ID() uint
	Name() string
	HasPermission(permission Permission) bool
	Permissions() []Permission
}

// ProfileResolver looks up the profile of a user. A nil profile with a nil
// error means the user has no profile.
type ProfileResolver interface {
	Resolve(ctx context.Context, userID uint) (Profile, error)
}

// StaticProfile is an in-memory Profile.
type StaticProfile struct {
	id          uint
	name        string
	permissions []Permission
}

// NewStaticProfile creates a profile holding the given permissions.
func NewStaticProfile(id uint, name string, permissions ...Permission) *StaticProfile {
	return &StaticProfile{id: id, name: name, permissions: permissions}
}

func (p *StaticProfile) ID() uint                  { return p.id }
func (p *StaticProfile) Name() string              { return p.name }
func (p *StaticProfile) Permissions() []Permission { return p.permissions }

func (p *StaticProfile) HasPermission(requested Permission) bool {
	for _, perm := range p.permissions {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}
