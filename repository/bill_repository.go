package repository

import (
	"context"
	"fmt"

	"legiscribe-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BillRepository handles database operations for processed bills
type BillRepository struct {
	db *pgxpool.Pool
}

// NewBillRepository creates a new bill repository
func NewBillRepository(db *pgxpool.Pool) *BillRepository {
	return &BillRepository{db: db}
}

// Create persists a processed bill
func (r *BillRepository) Create(ctx context.Context, bill *models.ProcessedBill) error {
	query := `
		INSERT INTO bills (
			id, file_name, original_text, clauses, summary,
			comparison, stakeholder_analysis, precedent_analysis, sentiment_analysis
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	err := r.db.QueryRow(
		ctx, query,
		bill.ID,
		bill.FileName,
		bill.OriginalText,
		bill.Clauses,
		bill.Summary,
		bill.Comparison,
		bill.StakeholderAnalysis,
		bill.PrecedentAnalysis,
		bill.SentimentAnalysis,
	).Scan(&bill.CreatedAt)

	return err
}

// GetByID retrieves a processed bill by ID
func (r *BillRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProcessedBill, error) {
	bill := &models.ProcessedBill{}
	query := `
		SELECT id, file_name, original_text, clauses, summary,
			comparison, stakeholder_analysis, precedent_analysis, sentiment_analysis,
			created_at
		FROM bills
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&bill.ID,
		&bill.FileName,
		&bill.OriginalText,
		&bill.Clauses,
		&bill.Summary,
		&bill.Comparison,
		&bill.StakeholderAnalysis,
		&bill.PrecedentAnalysis,
		&bill.SentimentAnalysis,
		&bill.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	if bill.Clauses == nil {
		bill.Clauses = make(models.ClauseList, 0)
	}

	return bill, nil
}

// List retrieves processed bills ordered by creation time, newest first
func (r *BillRepository) List(ctx context.Context, limit int) ([]*models.ProcessedBill, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, file_name, original_text, clauses, summary,
			comparison, stakeholder_analysis, precedent_analysis, sentiment_analysis,
			created_at
		FROM bills
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	bills := []*models.ProcessedBill{}
	for rows.Next() {
		bill := &models.ProcessedBill{}
		err := rows.Scan(
			&bill.ID,
			&bill.FileName,
			&bill.OriginalText,
			&bill.Clauses,
			&bill.Summary,
			&bill.Comparison,
			&bill.StakeholderAnalysis,
			&bill.PrecedentAnalysis,
			&bill.SentimentAnalysis,
			&bill.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		if bill.Clauses == nil {
			bill.Clauses = make(models.ClauseList, 0)
		}
		bills = append(bills, bill)
	}

	return bills, rows.Err()
}

// Delete removes a processed bill
func (r *BillRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM bills WHERE id = $1`, id)
	return err
}
