package seed

import (
	"context"
	"fmt"

	"epatra/internal/utils"
	"epatra/pkg/types"
)

type RoleUpserter interface {
	UpsertRole(ctx context.Context, role *types.Role) error
}

// Roles is the source of truth for the built-in roles. IDs are fixed so a
// re-run updates in place; generate new ones with `epatra nanoid`. Role
// names are what the identity provider puts in the roles claim.
var Roles = []types.Role{
	{
		ID:          "fmeKzUnkkQLfOpXYmnz1bjEHH3y1aC9X",
		Name:        "admin",
		DisplayName: "प्रशासक / Administrator",
		Description: utils.StringPtr("Full access, including roles and field configuration"),
		Permissions: []string{types.PermissionAll},
		IsActive:    true,
	},
	{
		ID:          "tbVLZMfF36YeW8J1RMZmMUekTTHFM88Z",
		Name:        "officer",
		DisplayName: "अधिकारी / Officer",
		Description: utils.StringPtr("Works documents end to end and reviews activity"),
		Permissions: []string{
			types.PermissionDocumentsRead,
			types.PermissionDocumentsWrite,
			types.PermissionDocumentsDelete,
			types.PermissionCommunicationsSend,
			types.PermissionAuditRead,
			types.PermissionAnalyticsRead,
		},
		IsActive: true,
	},
	{
		ID:          "NH3pahHkreHGD143KKzh5NOJvqtpm8PE",
		Name:        "clerk",
		DisplayName: "लिपिक / Clerk",
		Description: utils.StringPtr("Registers incoming letters and corrects extracted data"),
		Permissions: []string{
			types.PermissionDocumentsRead,
			types.PermissionDocumentsWrite,
			types.PermissionCommunicationsSend,
		},
		IsActive: true,
	},
	{
		ID:          "ygVUyQh5iFwg7NEeetoMi8iZN8lRjgOE",
		Name:        "viewer",
		DisplayName: "वाचक / Viewer",
		Description: utils.StringPtr("Read-only access to documents"),
		Permissions: []string{types.PermissionDocumentsRead},
		IsActive:    true,
	},
}

func SeedRoles(ctx context.Context, repo RoleUpserter) error {
	for _, role := range Roles {
		if err := role.Validate(); err != nil {
			return fmt.Errorf("seed role %s is invalid: %w", role.Name, err)
		}

		fmt.Printf("  Upserting role: %s\n", role.Name)
		if err := repo.UpsertRole(ctx, &role); err != nil {
			return fmt.Errorf("failed to upsert role %s: %w", role.Name, err)
		}
	}

	fmt.Printf("Roles seeded: %d upserted\n", len(Roles))
	return nil
}
