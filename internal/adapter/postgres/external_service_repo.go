package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// ExternalServiceRepo reads the tenant-scoped properties of named external
// services, such as the upstream system inbound messages are forwarded to.
type ExternalServiceRepo struct {
	db *sqlx.DB
}

func NewExternalServiceRepo(db *sqlx.DB) *ExternalServiceRepo {
	return &ExternalServiceRepo{db: db}
}

func (r *ExternalServiceRepo) Properties(ctx context.Context, tenantID int64, service string) (map[string]string, error) {
	var rows []struct {
		Name  string `db:"name"`
		Value string `db:"value"`
	}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT p.name, p.value
		FROM external_service_properties p
		JOIN external_services s ON s.id = p.external_service_id
		WHERE s.tenant_id = $1 AND s.name = $2`,
		tenantID, service,
	)
	if err != nil {
		return nil, err
	}

	props := make(map[string]string, len(rows))
	for _, row := range rows {
		props[row.Name] = row.Value
	}
	return props, nil
}
