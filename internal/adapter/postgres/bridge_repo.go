package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/finbridge/sms-gateway/internal/domain"
)

type BridgeRepo struct {
	db *sqlx.DB
}

func NewBridgeRepo(db *sqlx.DB) *BridgeRepo {
	return &BridgeRepo{db: db}
}

type bridgeRow struct {
	ID          int64     `db:"id"`
	TenantID    int64     `db:"tenant_id"`
	Name        string    `db:"name"`
	ProviderKey string    `db:"provider_key"`
	CountryCode string    `db:"country_code"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *BridgeRepo) GetByIDAndTenant(ctx context.Context, bridgeID, tenantID int64) (*domain.BridgeConfig, error) {
	var row bridgeRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM bridges WHERE id = $1 AND tenant_id = $2`, bridgeID, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		// The id ends up in the stored delivery error, so name the bridge.
		return nil, fmt.Errorf("%w: bridge %d for tenant %d", domain.ErrBridgeNotFound, bridgeID, tenantID)
	}
	if err != nil {
		return nil, err
	}

	var props []struct {
		Name  string `db:"name"`
		Value string `db:"value"`
	}
	err = r.db.SelectContext(ctx, &props,
		`SELECT name, value FROM bridge_config WHERE bridge_id = $1`, bridgeID)
	if err != nil {
		return nil, err
	}

	config := make(map[string]string, len(props))
	for _, p := range props {
		config[p.Name] = p.Value
	}

	return &domain.BridgeConfig{
		ID:          row.ID,
		TenantID:    row.TenantID,
		Name:        row.Name,
		ProviderKey: row.ProviderKey,
		CountryCode: row.CountryCode,
		Config:      config,
		CreatedAt:   row.CreatedAt,
	}, nil
}
