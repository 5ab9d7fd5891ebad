// Package postgres implements the TransactionRepository port on PostgreSQL.
// Idempotent creation rides on the unique idempotency-key index
// (insert-or-fetch), and status updates are compare-and-swap, so the state
// machine stays correct across any number of gateway instances without
// application-level locks.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"qpesapay/internal/core/domain"
	"qpesapay/internal/core/ports"
)

//go:embed schema.sql
var schemaSQL string

type Repository struct {
	pool *pgxpool.Pool
}

var _ ports.TransactionRepository = (*Repository)(nil)

// NewRepository connects, pings, and ensures the schema exists.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to apply schema: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() {
	r.pool.Close()
}

const recordColumns = `
	id, user_id, merchant_id, idempotency_key,
	amount::text, amount_currency, fee::text, fee_currency,
	recipient_address, recipient_network, status,
	exchange_rate::text, blockchain_hash, external_reference, failure_reason,
	description, created_at, updated_at`

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (domain.TransactionRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM transactions WHERE id = $1`, id)
	return scanRecord(row)
}

func (r *Repository) FindByIdempotencyKey(ctx context.Context, key string) (domain.TransactionRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM transactions WHERE idempotency_key = $1`, key)
	return scanRecord(row)
}

// InsertIfAbsent inserts the record and its initial audit entry in one
// transaction. ON CONFLICT DO NOTHING makes the existence check and the
// insert indivisible under concurrency: when the insert is a no-op the
// winner's row is fetched and returned instead.
func (r *Repository) InsertIfAbsent(ctx context.Context, rec domain.TransactionRecord, audit domain.AuditEntry) (domain.TransactionRecord, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.TransactionRecord{}, false, storageErr("begin", err)
	}
	defer tx.Rollback(ctx)

	var rate *string
	if rec.ExchangeRate != nil {
		s := rec.ExchangeRate.String()
		rate = &s
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO transactions (
			id, user_id, merchant_id, idempotency_key,
			amount, amount_currency, fee, fee_currency,
			recipient_address, recipient_network, status,
			exchange_rate, description, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5::numeric, $6, $7::numeric, $8,
			$9, $10, $11,
			$12::numeric, $13, $14, $15
		)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		rec.ID, rec.UserID, rec.MerchantID, rec.IdempotencyKey,
		rec.Amount.Amount().String(), rec.Amount.Currency().String(),
		rec.Fee.Amount().String(), rec.Fee.Currency().String(),
		rec.Recipient.Value(), rec.Recipient.Network().String(), rec.Status.String(),
		rate, rec.Description, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return domain.TransactionRecord{}, false, storageErr("insert transaction", err)
	}

	if tag.RowsAffected() == 0 {
		// Another writer got there first; hand back its committed row.
		existing, err := r.FindByIdempotencyKey(ctx, rec.IdempotencyKey)
		if err != nil {
			return domain.TransactionRecord{}, false, err
		}
		return existing, false, nil
	}

	if err := appendAudit(ctx, tx, audit); err != nil {
		return domain.TransactionRecord{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.TransactionRecord{}, false, storageErr("commit", err)
	}
	return rec, true, nil
}

// UpdateStatus applies the transition only if the stored status still equals
// expected. Zero rows updated means either an unknown id or a lost race; the
// follow-up read disambiguates the two.
func (r *Repository) UpdateStatus(ctx context.Context, rec domain.TransactionRecord, expected domain.Status, audit domain.AuditEntry) (domain.TransactionRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.TransactionRecord{}, storageErr("begin", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE transactions
		SET status = $1,
		    blockchain_hash = COALESCE($2, blockchain_hash),
		    external_reference = COALESCE($3, external_reference),
		    failure_reason = COALESCE($4, failure_reason),
		    updated_at = $5
		WHERE id = $6 AND status = $7`,
		rec.Status.String(), rec.BlockchainHash, rec.ExternalReference, rec.FailureReason,
		rec.UpdatedAt, rec.ID, expected.String(),
	)
	if err != nil {
		return domain.TransactionRecord{}, storageErr("update status", err)
	}

	if tag.RowsAffected() == 0 {
		var status string
		err := r.pool.QueryRow(ctx, `SELECT status FROM transactions WHERE id = $1`, rec.ID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TransactionRecord{}, domain.ErrNotFound
		}
		if err != nil {
			return domain.TransactionRecord{}, storageErr("read status", err)
		}
		return domain.TransactionRecord{}, fmt.Errorf("%w: expected %s, found %s",
			domain.ErrPersistenceConflict, expected, status)
	}

	if err := appendAudit(ctx, tx, audit); err != nil {
		return domain.TransactionRecord{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.TransactionRecord{}, storageErr("commit", err)
	}
	return rec, nil
}

func (r *Repository) AuditTrail(ctx context.Context, id uuid.UUID) ([]domain.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT transaction_id, seq, from_status, to_status, actor, reason, occurred_at
		FROM transaction_audit
		WHERE transaction_id = $1
		ORDER BY seq`, id)
	if err != nil {
		return nil, storageErr("query audit trail", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var from, to string
		if err := rows.Scan(&e.TransactionID, &e.Seq, &from, &to, &e.Actor, &e.Reason, &e.OccurredAt); err != nil {
			return nil, storageErr("scan audit entry", err)
		}
		e.FromStatus = domain.Status(from)
		e.ToStatus = domain.Status(to)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func appendAudit(ctx context.Context, tx pgx.Tx, audit domain.AuditEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transaction_audit (transaction_id, seq, from_status, to_status, actor, reason, occurred_at)
		VALUES (
			$1,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM transaction_audit WHERE transaction_id = $1),
			$2, $3, $4, $5, $6
		)`,
		audit.TransactionID, audit.FromStatus.String(), audit.ToStatus.String(),
		audit.Actor, audit.Reason, audit.OccurredAt,
	)
	if err != nil {
		return storageErr("append audit entry", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (domain.TransactionRecord, error) {
	var (
		rec                    domain.TransactionRecord
		amountStr, amountCur   string
		feeStr, feeCur         string
		addrValue, addrNetwork string
		status                 string
		rateStr                *string
		createdAt, updatedAt   time.Time
	)
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.MerchantID, &rec.IdempotencyKey,
		&amountStr, &amountCur, &feeStr, &feeCur,
		&addrValue, &addrNetwork, &status,
		&rateStr, &rec.BlockchainHash, &rec.ExternalReference, &rec.FailureReason,
		&rec.Description, &createdAt, &updatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TransactionRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.TransactionRecord{}, storageErr("scan transaction", err)
	}

	rec.Amount, err = parseMoney(amountStr, amountCur)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	rec.Fee, err = parseMoney(feeStr, feeCur)
	if err != nil {
		return domain.TransactionRecord{}, err
	}
	rec.Recipient, err = domain.NewAddress(addrValue, domain.Network(addrNetwork))
	if err != nil {
		return domain.TransactionRecord{}, fmt.Errorf("stored address invalid: %w", err)
	}
	if rateStr != nil {
		rate, err := decimal.NewFromString(*rateStr)
		if err != nil {
			return domain.TransactionRecord{}, fmt.Errorf("stored exchange rate invalid: %w", err)
		}
		rec.ExchangeRate = &rate
	}
	rec.Status = domain.Status(status)
	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt
	return rec, nil
}

// parseMoney rebuilds a Money from its stored text form. NUMERIC(30,8) pads
// with trailing zeros, so the stored scale can exceed the currency's
// canonical precision; truncation is lossless here because the value was
// written at canonical scale.
func parseMoney(amountStr, currency string) (domain.Money, error) {
	cur, err := domain.ParseCurrency(currency)
	if err != nil {
		return domain.Money{}, fmt.Errorf("stored currency invalid: %w", err)
	}
	d, err := decimal.NewFromString(amountStr)
	if err != nil {
		return domain.Money{}, fmt.Errorf("stored amount invalid: %w", err)
	}
	return domain.NewMoney(d.Truncate(cur.Decimals()), cur)
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageUnavailable, op, err)
}
