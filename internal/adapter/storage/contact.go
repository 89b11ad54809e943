package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/receiptbot/internal/core/domain"
)

type ContactRepository struct {
	db *pgxpool.Pool
}

func NewContactRepository(db *pgxpool.Pool) *ContactRepository {
	return &ContactRepository{db: db}
}

// Upsert records that phone just paid through lineID
func (r *ContactRepository) Upsert(ctx context.Context, phone, lineID string, seenAt time.Time) error {
	query := `
		INSERT INTO contacts (phone, line_id, receipts_count, last_seen_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (phone) DO UPDATE SET
			line_id = EXCLUDED.line_id,
			receipts_count = contacts.receipts_count + 1,
			last_seen_at = GREATEST(contacts.last_seen_at, EXCLUDED.last_seen_at)
	`
	if _, err := r.db.Exec(ctx, query, phone, lineID, seenAt); err != nil {
		return fmt.Errorf("failed to upsert contact: %w", err)
	}
	return nil
}

func (r *ContactRepository) Get(ctx context.Context, phone string) (*domain.Contact, error) {
	query := `SELECT phone, line_id, receipts_count, last_seen_at FROM contacts WHERE phone = $1`
	var c domain.Contact
	err := r.db.QueryRow(ctx, query, phone).Scan(&c.Phone, &c.LineID, &c.ReceiptsCount, &c.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contact: %w", err)
	}
	return &c, nil
}
