package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"epatra/internal/utils"
	"epatra/pkg/types"
)

func (s *Store) Roles(ctx context.Context) ([]*types.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, clone(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) Role(ctx context.Context, id string) (*types.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[id]
	if !ok {
		return nil, types.ErrRoleNotFound
	}
	return clone(r), nil
}

func (s *Store) ActiveRolesByNames(ctx context.Context, names []string) ([]*types.Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.Role, 0)
	for _, name := range names {
		for _, r := range s.roles {
			if r.Name == name && r.IsActive {
				out = append(out, clone(r))
			}
		}
	}
	return out, nil
}

func (s *Store) CreateRole(ctx context.Context, role *types.Role, actor types.AuditContext) error {
	if err := role.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.roleNameTaken(role.Name, "") {
		return types.NewValidationError("name", "a role with this name already exists")
	}

	now := time.Now()
	role.ID = utils.NanoID()
	role.CreatedAt = now
	role.UpdatedAt = now
	if role.Permissions == nil {
		role.Permissions = []string{}
	}
	s.roles[role.ID] = clone(role)
	s.appendAudit(actor.Entry(types.AuditActionCreateRole, types.EntityRole, role.ID, nil, role))
	return nil
}

func (s *Store) UpdateRole(ctx context.Context, id string, role *types.Role, actor types.AuditContext) error {
	if err := role.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.roles[id]
	if !ok {
		return types.ErrRoleNotFound
	}
	if s.roleNameTaken(role.Name, id) {
		return types.NewValidationError("name", "a role with this name already exists")
	}

	role.ID = id
	role.CreatedAt = current.CreatedAt
	role.UpdatedAt = time.Now()
	s.appendAudit(actor.Entry(types.AuditActionUpdateRole, types.EntityRole, id, current, role))
	s.roles[id] = clone(role)
	return nil
}

func (s *Store) DeactivateRole(ctx context.Context, id string, actor types.AuditContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[id]
	if !ok {
		return types.ErrRoleNotFound
	}
	r.IsActive = false
	r.UpdatedAt = time.Now()
	s.appendAudit(actor.Entry(types.AuditActionDeactivateRole, types.EntityRole, id, nil, nil))
	return nil
}

// UpsertRole keeps the caller's id, as the seeder does.
func (s *Store) UpsertRole(ctx context.Context, role *types.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	role.CreatedAt = now
	role.UpdatedAt = now
	s.roles[role.ID] = clone(role)
	return nil
}

func (s *Store) FieldConfigs(ctx context.Context, activeOnly bool) ([]*types.FieldConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.FieldConfiguration, 0, len(s.fields))
	for _, f := range s.fields {
		if activeOnly && !f.IsActive {
			continue
		}
		out = append(out, clone(f))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder == out[j].DisplayOrder {
			return out[i].Name < out[j].Name
		}
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out, nil
}

func (s *Store) FieldConfig(ctx context.Context, id string) (*types.FieldConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.fields[id]
	if !ok {
		return nil, types.ErrFieldConfigNotFound
	}
	return clone(f), nil
}

func (s *Store) CreateFieldConfig(ctx context.Context, field *types.FieldConfiguration, actor types.AuditContext) error {
	if err := field.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fieldNameTaken(field.Name, "") {
		return types.NewValidationError("name", "a field with this name already exists")
	}

	now := time.Now()
	field.ID = utils.NanoID()
	field.CreatedAt = now
	field.UpdatedAt = now
	s.fields[field.ID] = clone(field)
	s.appendAudit(actor.Entry(types.AuditActionCreateFieldConfig, types.EntityFieldConfig, field.ID, nil, field))
	return nil
}

func (s *Store) UpdateFieldConfig(ctx context.Context, id string, field *types.FieldConfiguration, actor types.AuditContext) error {
	if err := field.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.fields[id]
	if !ok {
		return types.ErrFieldConfigNotFound
	}
	if s.fieldNameTaken(field.Name, id) {
		return types.NewValidationError("name", "a field with this name already exists")
	}
	field.ID = id
	field.CreatedAt = current.CreatedAt
	field.UpdatedAt = time.Now()
	s.appendAudit(actor.Entry(types.AuditActionUpdateFieldConfig, types.EntityFieldConfig, id, current, field))
	s.fields[id] = clone(field)
	return nil
}

func (s *Store) DeleteFieldConfig(ctx context.Context, id string, actor types.AuditContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.fields[id]
	if !ok {
		return types.ErrFieldConfigNotFound
	}
	delete(s.fields, id)
	s.appendAudit(actor.Entry(types.AuditActionDeleteFieldConfig, types.EntityFieldConfig, id, current, nil))
	return nil
}

func (s *Store) UpsertFieldConfig(ctx context.Context, field *types.FieldConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	field.CreatedAt = now
	field.UpdatedAt = now
	s.fields[field.ID] = clone(field)
	return nil
}

func (s *Store) CreateCommunication(ctx context.Context, c *types.CommunicationLog, actor types.AuditContext) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c.ID = utils.NanoID()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = types.DeliveryQueued
	}
	s.communications[c.ID] = clone(c)
	s.appendAudit(actor.Entry(types.AuditActionSendCommunication, types.EntityCommunication, c.ID, nil, c))
	return nil
}

func (s *Store) Communication(ctx context.Context, id string) (*types.CommunicationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.communications[id]
	if !ok {
		return nil, types.ErrCommunicationNotFound
	}
	return clone(c), nil
}

func (s *Store) Communications(ctx context.Context, filter types.CommunicationFilter) ([]*types.CommunicationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.CommunicationLog, 0)
	for _, c := range s.communications {
		if filter.Channel != "" && c.Channel != filter.Channel {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.DocumentID != "" && utils.PtrString(c.DocumentID) != filter.DocumentID {
			continue
		}
		out = append(out, clone(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateDeliveryStatus(ctx context.Context, id string, status types.DeliveryStatus, providerMessageID, errorMessage *string, actor types.AuditContext) (*types.CommunicationLog, error) {
	if !status.Valid() {
		return nil, types.NewValidationError("status", "unknown delivery status")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.communications[id]
	if !ok {
		return nil, types.ErrCommunicationNotFound
	}
	if !c.Status.CanAdvanceTo(status) {
		return nil, fmt.Errorf("%w: communication %s is already %s", types.ErrInvalidTransition, id, c.Status)
	}
	c.Status = status
	if now := time.Now(); now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
	if providerMessageID != nil {
		c.ProviderMessageID = utils.StringPtr(*providerMessageID)
	}
	if errorMessage != nil {
		c.ErrorMessage = utils.StringPtr(*errorMessage)
	}
	s.appendAudit(actor.Entry(types.AuditActionCommunicationUpdated, types.EntityCommunication, id, nil, map[string]any{"status": status}))
	return clone(c), nil
}

func (s *Store) roleNameTaken(name, exceptID string) bool {
	for id, r := range s.roles {
		if id != exceptID && r.Name == name {
			return true
		}
	}
	return false
}

func (s *Store) fieldNameTaken(name, exceptID string) bool {
	for id, f := range s.fields {
		if id != exceptID && f.Name == name {
			return true
		}
	}
	return false
}
