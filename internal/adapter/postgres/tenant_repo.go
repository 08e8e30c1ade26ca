package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/finbridge/sms-gateway/internal/domain"
)

type TenantRepo struct {
	db *sqlx.DB
}

func NewTenantRepo(db *sqlx.DB) *TenantRepo {
	return &TenantRepo{db: db}
}

type tenantRow struct {
	ID         int64     `db:"id"`
	Identifier string    `db:"identifier"`
	Name       string    `db:"name"`
	AppKeyHash string    `db:"app_key_hash"`
	CreatedAt  time.Time `db:"created_at"`
}

// Authenticate verifies the application key against the stored bcrypt hash.
// Unknown identifiers and bad keys produce the same error so callers cannot
// probe for tenant names.
func (r *TenantRepo) Authenticate(ctx context.Context, identifier, appKey string) (*domain.Tenant, error) {
	tenant, err := r.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, domain.ErrTenantNotFound) {
			return nil, domain.ErrAuthenticationFailed
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(tenant.AppKeyHash), []byte(appKey)); err != nil {
		return nil, domain.ErrAuthenticationFailed
	}
	return tenant, nil
}

func (r *TenantRepo) FindByIdentifier(ctx context.Context, identifier string) (*domain.Tenant, error) {
	var row tenantRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM tenants WHERE identifier = $1`, identifier)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}

	return &domain.Tenant{
		ID:         row.ID,
		Identifier: row.Identifier,
		Name:       row.Name,
		AppKeyHash: row.AppKeyHash,
		CreatedAt:  row.CreatedAt,
	}, nil
}
