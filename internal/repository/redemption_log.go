package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stella-events/ticketing/internal/model"
)

// RedemptionLogRepository appends to the redemption audit trail. The log is
// advisory: the tickets row decides whether entry is granted, the log only
// records that an attempt happened.
type RedemptionLogRepository struct {
	db *pgxpool.Pool
}

// NewRedemptionLogRepository constructs a RedemptionLogRepository.
func NewRedemptionLogRepository(db *pgxpool.Pool) *RedemptionLogRepository {
	return &RedemptionLogRepository{db: db}
}

// Append inserts one audit entry.
func (r *RedemptionLogRepository) Append(ctx context.Context, rec *model.RedemptionRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO redemption_records (id, ticket_id, event_id, verdict, attempted_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.TicketID, rec.EventID, rec.Verdict, rec.AttemptedAt,
	)
	if err != nil {
		return fmt.Errorf("insert redemption record: %w", err)
	}
	return nil
}
