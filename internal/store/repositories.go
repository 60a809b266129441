package store

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories bundles every repository over one pool so callers can depend
// on the method sets they need.
type Repositories struct {
	*DocumentRepository
	*AuditRepository
	*RoleRepository
	*FieldConfigRepository
	*CommunicationRepository
	*NotificationRepository
	*AnalyticsRepository
}

func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		DocumentRepository:      NewDocumentRepository(pool),
		AuditRepository:         NewAuditRepository(pool),
		RoleRepository:          NewRoleRepository(pool),
		FieldConfigRepository:   NewFieldConfigRepository(pool),
		CommunicationRepository: NewCommunicationRepository(pool),
		NotificationRepository:  NewNotificationRepository(pool),
		AnalyticsRepository:     NewAnalyticsRepository(pool),
	}
}
