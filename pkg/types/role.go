package types

import (
	"slices"
	"strings"
	"time"
)

const (
	PermissionAll                = "*"
	PermissionDocumentsRead      = "documents.read"
	PermissionDocumentsWrite     = "documents.write"
	PermissionDocumentsDelete    = "documents.delete"
	PermissionRolesManage        = "roles.manage"
	PermissionFieldsManage       = "fields.manage"
	PermissionCommunicationsSend = "communications.send"
	PermissionAuditRead          = "audit.read"
	PermissionAnalyticsRead      = "analytics.read"
)

var KnownPermissions = []string{
	PermissionAll,
	PermissionDocumentsRead,
	PermissionDocumentsWrite,
	PermissionDocumentsDelete,
	PermissionRolesManage,
	PermissionFieldsManage,
	PermissionCommunicationsSend,
	PermissionAuditRead,
	PermissionAnalyticsRead,
}

type Role struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	DisplayName string    `db:"display_name" json:"displayName"`
	Description *string   `db:"description" json:"description"`
	Permissions []string  `db:"permissions" json:"permissions"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

func (r *Role) Allows(permission string) bool {
	return r.IsActive && (slices.Contains(r.Permissions, PermissionAll) || slices.Contains(r.Permissions, permission))
}

func (r *Role) Validate() error {
	verr := new(ValidationError)
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		verr.Add("name", "name is required")
	}
	if strings.TrimSpace(r.DisplayName) == "" {
		verr.Add("displayName", "display name is required")
	}
	for _, p := range r.Permissions {
		if !slices.Contains(KnownPermissions, p) {
			verr.Add("permissions", "unknown permission "+p)
			break
		}
	}
	return verr.OrNil()
}

// Principal is the authenticated caller as asserted by the OIDC provider.
type Principal struct {
	UserID string   `json:"userId"`
	Email  string   `json:"email,omitempty"`
	Roles  []string `json:"roles"`
}
