package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stella-events/ticketing/internal/model"
)

// Outbox row states.
const (
	OutboxPending = "pending"
	OutboxSending = "sending"
	OutboxSent    = "sent"
	OutboxFailed  = "failed"
)

// OutboxRepository persists pending ticket notifications for the resend
// worker. Issuance is the durability boundary; a failed email lands here
// instead of failing fulfillment.
type OutboxRepository struct {
	db *pgxpool.Pool
}

// NewOutboxRepository constructs an OutboxRepository.
func NewOutboxRepository(db *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue records that an order's ticket email still needs to be sent.
func (r *OutboxRepository) Enqueue(ctx context.Context, orderID, recipient, lastError string) error {
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx,
		`INSERT INTO notification_outbox
		     (id, order_id, recipient, status, attempts, last_error, next_attempt_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, 0, $5, $6, $6, $6)`,
		uuid.New().String(), orderID, recipient, OutboxPending, lastError, now,
	)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// ClaimBatch moves up to limit due pending rows to 'sending' and returns
// them. FOR UPDATE SKIP LOCKED lets multiple workers poll concurrently
// without double-claiming.
func (r *OutboxRepository) ClaimBatch(ctx context.Context, limit int) ([]model.PendingNotification, error) {
	rows, err := r.db.Query(ctx,
		`WITH claimed AS (
			SELECT id
			FROM notification_outbox
			WHERE status = $1 AND next_attempt_at <= NOW()
			ORDER BY next_attempt_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE notification_outbox
		SET status = $3, updated_at = NOW()
		WHERE id IN (SELECT id FROM claimed)
		RETURNING id, order_id, recipient, status, attempts, last_error,
		          next_attempt_at, created_at, updated_at`,
		OutboxPending, limit, OutboxSending,
	)
	if err != nil {
		return nil, fmt.Errorf("claim outbox batch: %w", err)
	}
	defer rows.Close()

	var pending []model.PendingNotification
	for rows.Next() {
		var n model.PendingNotification
		if err := rows.Scan(&n.ID, &n.OrderID, &n.Recipient, &n.Status, &n.Attempts,
			&n.LastError, &n.NextAttemptAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		pending = append(pending, n)
	}
	return pending, rows.Err()
}

// MarkSent finalises a delivered notification.
func (r *OutboxRepository) MarkSent(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notification_outbox SET status = $1, updated_at = NOW() WHERE id = $2`,
		OutboxSent, id,
	)
	if err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkRetry returns a failed attempt to the pending queue with a backoff
// deadline and the error recorded for operators.
func (r *OutboxRepository) MarkRetry(ctx context.Context, id string, attempts int, lastError string, nextAttempt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notification_outbox
		 SET status = $1, attempts = $2, last_error = $3, next_attempt_at = $4, updated_at = NOW()
		 WHERE id = $5`,
		OutboxPending, attempts, lastError, nextAttempt, id,
	)
	if err != nil {
		return fmt.Errorf("mark notification for retry: %w", err)
	}
	return nil
}

// MarkFailed parks a notification that exhausted its attempts. Parked rows
// are the input to the manual resend path.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, lastError string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE notification_outbox
		 SET status = $1, attempts = $2, last_error = $3, updated_at = NOW()
		 WHERE id = $4`,
		OutboxFailed, attempts, lastError, id,
	)
	if err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}
