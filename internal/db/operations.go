package db

import (
	"database/sql"
	"errors"
	"fmt"

	apperrors "github.com/SIMPLYBOYS/pay_usdc/internal/errors"
	"github.com/SIMPLYBOYS/pay_usdc/internal/types"
	"github.com/SIMPLYBOYS/pay_usdc/pkg/logger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies every pending migration found at sourceURL.
func RunMigrations(db *sql.DB, sourceURL string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return &apperrors.DatabaseError{Operation: "create the postgres driver", Err: err}
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return &apperrors.DatabaseError{Operation: "create migrate instance", Err: err}
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return &apperrors.DatabaseError{Operation: "sync the database", Err: err}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

func (s *DBServiceImpl) CreateBatch(batch Batch) error {
	status := batch.Status
	if status == "" {
		status = BatchStatusRunning
	}
	_, err := s.db.Exec(`
		INSERT INTO batches (id, sender, chain, memo_template, recipient_count, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		batch.ID, batch.Sender, batch.Chain, batch.MemoTemplate, batch.RecipientCount, status)
	if err != nil {
		return &apperrors.DatabaseError{Operation: "create batch", Err: err}
	}
	return nil
}

func (s *DBServiceImpl) SaveSettlementResult(batchID string, position int, result types.SettlementResult) error {
	r := result.Recipient
	_, err := s.db.Exec(`
		INSERT INTO settlement_results
			(batch_id, position, address, name, amount, percentage, success, state, tx_hash, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		batchID, position, r.Address, r.Name, r.Amount, r.Percentage,
		result.Success, string(result.State), result.TransactionHash, result.Error)
	if err != nil {
		return &apperrors.DatabaseError{Operation: "save settlement result", Err: err}
	}
	return nil
}

func (s *DBServiceImpl) CompleteBatch(batchID string, succeeded, failed int) error {
	res, err := s.db.Exec(`
		UPDATE batches
		SET succeeded = $2, failed = $3, status = $4, completed_at = NOW()
		WHERE id = $1`, batchID, succeeded, failed, BatchStatusCompleted)
	if err != nil {
		return &apperrors.DatabaseError{Operation: "complete batch", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &apperrors.NotFoundError{Resource: "batch", Identifier: batchID}
	}
	return nil
}

// GetBatch loads a batch with its results in recipient order.
func (s *DBServiceImpl) GetBatch(id string) (Batch, error) {
	var b Batch
	var completedAt sql.NullTime
	err := s.db.QueryRow(`
		SELECT id, sender, chain, memo_template, recipient_count, succeeded, failed, status, created_at, completed_at
		FROM batches
		WHERE id = $1`, id).Scan(&b.ID, &b.Sender, &b.Chain, &b.MemoTemplate, &b.RecipientCount,
		&b.Succeeded, &b.Failed, &b.Status, &b.CreatedAt, &completedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Batch{}, &apperrors.NotFoundError{Resource: "batch", Identifier: id}
		}
		return Batch{}, &apperrors.DatabaseError{Operation: "get batch", Err: err}
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}

	rows, err := s.db.Query(`
		SELECT address, name, amount, percentage, success, state, tx_hash, error
		FROM settlement_results
		WHERE batch_id = $1
		ORDER BY position`, id)
	if err != nil {
		return Batch{}, &apperrors.DatabaseError{Operation: "get settlement results", Err: err}
	}
	defer rows.Close()

	b.Results = []types.SettlementResult{}
	for rows.Next() {
		var r types.SettlementResult
		var state string
		if err := rows.Scan(&r.Recipient.Address, &r.Recipient.Name, &r.Recipient.Amount,
			&r.Recipient.Percentage, &r.Success, &state, &r.TransactionHash, &r.Error); err != nil {
			return Batch{}, fmt.Errorf("error scanning settlement result row: %w", err)
		}
		r.State = types.SettlementState(state)
		b.Results = append(b.Results, r)
	}
	if err := rows.Err(); err != nil {
		return Batch{}, fmt.Errorf("error iterating settlement result rows: %w", err)
	}

	return b, nil
}
