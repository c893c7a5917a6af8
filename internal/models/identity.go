package models

import "strings"

// Role is the canonical role used by authorization. Raw roles coming from
// tokens and other services are mapped through roleTable.
type Role string

const (
	RoleUser     Role = "user"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

var roleTable = map[string]Role{
	"user":         RoleUser,
	"client":       RoleUser,
	"customer":     RoleUser,
	"requester":    RoleUser,
	"provider":     RoleProvider,
	"cleaner":      RoleProvider,
	"professional": RoleProvider,
	"admin":        RoleAdmin,
	"agent":        RoleAdmin,
	"manager":      RoleAdmin,
	"support":      RoleAdmin,
}

// NormalizeRole maps a raw role string to its canonical Role.
func NormalizeRole(raw string) (Role, bool) {
	r, ok := roleTable[strings.ToLower(strings.TrimSpace(raw))]
	return r, ok
}

// AgentRoles returns the raw role strings that map to RoleAdmin.
func AgentRoles() []string {
	out := make([]string, 0, 4)
	for raw, r := range roleTable {
		if r == RoleAdmin {
			out = append(out, raw)
		}
	}
	return out
}

func (r Role) IsAgent() bool { return r == RoleAdmin }

// Identity is bound to a connection once at handshake and never mutated.
type Identity struct {
	ConnectionID string `json:"connection_id"`
	UserID       string `json:"user_id"`
	Role         Role   `json:"role"`
}

func (i Identity) IsAgent() bool { return i.Role.IsAgent() }
