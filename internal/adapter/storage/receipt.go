package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/receiptbot/internal/core/domain"
)

const receiptColumns = `id, document, amount::text, sender, beneficiary, bank, payment_type,
	COALESCE(service, ''), paid_at, contact_phone, fake_confidence, created_at`

type ReceiptRepository struct {
	db *pgxpool.Pool
}

func NewReceiptRepository(db *pgxpool.Pool) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

// ReceiptFilter narrows List. Zero values mean "no filter".
type ReceiptFilter struct {
	From  time.Time
	To    time.Time
	Phone string
	Limit int
}

// Insert stores the receipt unless its document number already exists.
// On success rec.ID and rec.CreatedAt are filled and inserted is true.
func (r *ReceiptRepository) Insert(ctx context.Context, rec *domain.Receipt) (bool, error) {
	query := `
		INSERT INTO receipts (document, amount, sender, beneficiary, bank, payment_type, service, paid_at, contact_phone, fake_confidence)
		VALUES ($1, $2::numeric, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)
		ON CONFLICT (document) DO NOTHING
		RETURNING id, created_at
	`
	err := r.db.QueryRow(ctx, query,
		rec.Document, rec.Amount.StringFixed(2), rec.Sender, rec.Beneficiary, rec.Bank,
		string(rec.PaymentType), rec.Service, rec.PaidAt, rec.ContactPhone, rec.FakeConfidence,
	).Scan(&rec.ID, &rec.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		// ON CONFLICT DO NOTHING returns no row
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert receipt: %w", err)
	}
	return true, nil
}

func (r *ReceiptRepository) FindByDocument(ctx context.Context, document string) (*domain.Receipt, error) {
	row := r.db.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE document = $1`, document)
	rec, err := scanReceipt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipt: %w", err)
	}
	return rec, nil
}

// List returns receipts newest first
func (r *ReceiptRepository) List(ctx context.Context, f ReceiptFilter) ([]domain.Receipt, error) {
	var where []string
	var args []any
	add := func(cond string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if !f.From.IsZero() {
		add("paid_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("paid_at <= $%d", f.To)
	}
	if f.Phone != "" {
		add("contact_phone = $%d", f.Phone)
	}

	query := `SELECT ` + receiptColumns + ` FROM receipts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY paid_at DESC"

	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []domain.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, *rec)
	}
	return receipts, rows.Err()
}

func scanReceipt(row pgx.Row) (*domain.Receipt, error) {
	var rec domain.Receipt
	var amount, paymentType string
	err := row.Scan(
		&rec.ID, &rec.Document, &amount, &rec.Sender, &rec.Beneficiary, &rec.Bank, &paymentType,
		&rec.Service, &rec.PaidAt, &rec.ContactPhone, &rec.FakeConfidence, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	rec.PaymentType = domain.PaymentType(paymentType)
	return &rec, nil
}
