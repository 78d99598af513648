package models

// Role resolution sources. The system is mid-migration from MEMBER_OF
// edges carrying a role field to dedicated HAS_ROLE edges; both are
// honored, HAS_ROLE first.
const (
	RoleSourcePrimary = "primary" // HAS_ROLE relationship
	RoleSourceLegacy  = "legacy"  // MEMBER_OF relationship with a role field
)

// Well-known role codes.
const (
	RoleOwner    = "OWNER"
	RoleAdmin    = "ADMIN"
	RoleManager  = "MANAGER"
	RoleUser     = "USER"
	RoleReadOnly = "READONLY"
)

// ResolvedRole is an actor's effective role for one organization, tagged
// with which relationship convention produced it.
type ResolvedRole struct {
	Role        string   `json:"role"`
	Source      string   `json:"source"`
	Permissions []string `json:"permissions"`
}
