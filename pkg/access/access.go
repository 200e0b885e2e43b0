package access

import (
	"encoding"
	"errors"
)

// PermissionLevel is the level of access a user holds on a repository, as
// reported by the source-control host.
type PermissionLevel int

const (
	// NoPermission means the user has no access to the repository.
	NoPermission PermissionLevel = iota

	// ReadPermission allows read-only access to the repository.
	ReadPermission

	// WritePermission allows push access to the repository.
	WritePermission

	// MaintainPermission allows managing the repository without access to
	// destructive actions.
	MaintainPermission

	// AdminPermission allows full access to the repository.
	AdminPermission
)

// String returns the string representation of the permission level.
func (p PermissionLevel) String() string {
	switch p {
	case NoPermission:
		return "none"
	case ReadPermission:
		return "read"
	case WritePermission:
		return "write"
	case MaintainPermission:
		return "maintain"
	case AdminPermission:
		return "admin"
	default:
		return "unknown"
	}
}

// ParsePermissionLevel parses a permission level string.
func ParsePermissionLevel(s string) PermissionLevel {
	switch s {
	case "none":
		return NoPermission
	case "read", "pull", "triage":
		return ReadPermission
	case "write", "push":
		return WritePermission
	case "maintain":
		return MaintainPermission
	case "admin":
		return AdminPermission
	default:
		return PermissionLevel(-1)
	}
}

// CanTriggerRecheck reports whether the permission level is sufficient to
// request a compliance re-evaluation on a pull request.
func (p PermissionLevel) CanTriggerRecheck() bool {
	return p >= WritePermission
}

var (
	_ encoding.TextMarshaler   = PermissionLevel(0)
	_ encoding.TextUnmarshaler = (*PermissionLevel)(nil)
)

// ErrInvalidPermissionLevel is returned when an invalid permission level is
// provided.
var ErrInvalidPermissionLevel = errors.New("invalid permission level")

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PermissionLevel) UnmarshalText(text []byte) error {
	l := ParsePermissionLevel(string(text))
	if l < 0 {
		return ErrInvalidPermissionLevel
	}

	*p = l

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (p PermissionLevel) MarshalText() (text []byte, err error) {
	return []byte(p.String()), nil
}
