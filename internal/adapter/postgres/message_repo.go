package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/finbridge/sms-gateway/internal/domain"
)

type MessageRepo struct {
	db *sqlx.DB
}

func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

type outboundRow struct {
	ID           int64      `db:"id"`
	TenantID     int64      `db:"tenant_id"`
	BridgeID     int64      `db:"bridge_id"`
	MobileNumber string     `db:"mobile_number"`
	Message      string     `db:"message"`
	ExternalID   *string    `db:"external_id"`
	Status       string     `db:"status"`
	ErrorMessage *string    `db:"error_message"`
	SubmittedAt  time.Time  `db:"submitted_at"`
	DeliveredAt  *time.Time `db:"delivered_at"`
}

// CreateBatch inserts the batch in one transaction and writes the generated
// ids back onto the messages. Either all rows land or none do.
func (r *MessageRepo) CreateBatch(ctx context.Context, messages []*domain.OutboundMessage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, m := range messages {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO outbound_messages
			(tenant_id, bridge_id, mobile_number, message, external_id, status, error_message, submitted_at, delivered_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			RETURNING id`,
			m.TenantID, m.BridgeID, m.MobileNumber, m.Message, m.ExternalID,
			m.Status, m.ErrorMessage, m.SubmittedAt, m.DeliveredAt,
		).Scan(&m.ID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *MessageRepo) Update(ctx context.Context, m *domain.OutboundMessage) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE outbound_messages
		SET external_id=$1, status=$2, error_message=$3, delivered_at=$4
		WHERE id=$5`,
		m.ExternalID, m.Status, m.ErrorMessage, m.DeliveredAt, m.ID,
	)
	if err != nil {
		return err
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrMessageNotFound
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, tenantID, id int64) (*domain.OutboundMessage, error) {
	var row outboundRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM outbound_messages WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return rowToOutbound(row), nil
}

func (r *MessageRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.OutboundMessage, error) {
	var row outboundRow
	err := r.db.GetContext(ctx, &row,
		`SELECT * FROM outbound_messages WHERE external_id = $1 ORDER BY id LIMIT 1`, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return rowToOutbound(row), nil
}

// ListByStatus pages keyset-style on id so callers can walk the table without
// re-reading rows whose status they just changed.
func (r *MessageRepo) ListByStatus(ctx context.Context, status domain.Status, afterID int64, limit int) ([]*domain.OutboundMessage, error) {
	var rows []outboundRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM outbound_messages
		WHERE status = $1 AND id > $2
		ORDER BY id
		LIMIT $3`,
		status, afterID, limit,
	)
	if err != nil {
		return nil, err
	}

	result := make([]*domain.OutboundMessage, len(rows))
	for i, row := range rows {
		result[i] = rowToOutbound(row)
	}
	return result, nil
}

func (r *MessageRepo) DeliveryStatuses(ctx context.Context, tenantID int64, ids []int64) ([]domain.DeliveryStatus, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		`SELECT id, external_id, delivered_at, status, error_message
		FROM outbound_messages
		WHERE tenant_id = ? AND id IN (?)
		ORDER BY id`,
		tenantID, ids,
	)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		ID           int64      `db:"id"`
		ExternalID   *string    `db:"external_id"`
		DeliveredAt  *time.Time `db:"delivered_at"`
		Status       string     `db:"status"`
		ErrorMessage *string    `db:"error_message"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}

	result := make([]domain.DeliveryStatus, len(rows))
	for i, row := range rows {
		result[i] = domain.DeliveryStatus{
			InternalID:   row.ID,
			ExternalID:   row.ExternalID,
			DeliveredAt:  row.DeliveredAt,
			Status:       domain.Status(row.Status),
			ErrorMessage: row.ErrorMessage,
		}
	}
	return result, nil
}

func (r *MessageRepo) CreateInbound(ctx context.Context, m *domain.InboundMessage) error {
	return r.db.QueryRowContext(ctx,
		`INSERT INTO inbound_messages (tenant_id, mobile_number, payload_code, received_at)
		VALUES ($1,$2,$3,$4)
		RETURNING id`,
		m.TenantID, m.MobileNumber, m.PayloadCode, m.ReceivedAt,
	).Scan(&m.ID)
}

func rowToOutbound(row outboundRow) *domain.OutboundMessage {
	return &domain.OutboundMessage{
		ID:           row.ID,
		TenantID:     row.TenantID,
		BridgeID:     row.BridgeID,
		MobileNumber: row.MobileNumber,
		Message:      row.Message,
		ExternalID:   row.ExternalID,
		Status:       domain.Status(row.Status),
		ErrorMessage: row.ErrorMessage,
		SubmittedAt:  row.SubmittedAt,
		DeliveredAt:  row.DeliveredAt,
	}
}
