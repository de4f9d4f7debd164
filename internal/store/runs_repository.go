package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zaryab2000/decipher-solidity-upgradoor/internal/domain"
)

// Run is one persisted invocation of engine.Analyze.
type Run struct {
	RunID          string
	ProxyAddress   string
	Verdict        domain.Verdict
	HighestSeverity *domain.Severity
	AnalyzerStatus map[domain.AnalyzerName]domain.OutcomeStatus
	FindingCount   int
	CreatedAt      time.Time
}

// RunsRepository persists one row per invocation for historical lookup.
type RunsRepository struct {
	db *DB
}

// NewRunsRepository builds a RunsRepository over db.
func NewRunsRepository(db *DB) *RunsRepository {
	return &RunsRepository{db: db}
}

// Insert records one completed invocation.
func (r *RunsRepository) Insert(ctx context.Context, run Run) error {
	statusJSON, err := json.Marshal(run.AnalyzerStatus)
	if err != nil {
		return fmt.Errorf("marshal analyzer status: %w", err)
	}
	var highest sql.NullString
	if run.HighestSeverity != nil {
		highest = sql.NullString{String: string(*run.HighestSeverity), Valid: true}
	}

	const query = `
		INSERT INTO analysis_runs (run_id, proxy_address, verdict, highest_severity, analyzer_status, finding_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.db.ExecContext(ctx, query,
		run.RunID, run.ProxyAddress, string(run.Verdict), highest, statusJSON, run.FindingCount, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis run: %w", err)
	}
	return nil
}

// ListByProxy returns prior runs for a proxy address, most recent first.
func (r *RunsRepository) ListByProxy(ctx context.Context, proxyAddress string, limit int) ([]Run, error) {
	const query = `
		SELECT run_id, proxy_address, verdict, highest_severity, analyzer_status, finding_count, created_at
		FROM analysis_runs
		WHERE proxy_address = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, proxyAddress, limit)
	if err != nil {
		return nil, fmt.Errorf("list analysis runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var highest sql.NullString
		var statusJSON []byte
		if err := rows.Scan(&run.RunID, &run.ProxyAddress, &run.Verdict, &highest, &statusJSON, &run.FindingCount, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis run: %w", err)
		}
		if highest.Valid {
			sev := domain.Severity(highest.String)
			run.HighestSeverity = &sev
		}
		if err := json.Unmarshal(statusJSON, &run.AnalyzerStatus); err != nil {
			return nil, fmt.Errorf("unmarshal analyzer status: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetByRunID fetches one run by its ID, returning domain.ErrNotFound if
// it doesn't exist.
func (r *RunsRepository) GetByRunID(ctx context.Context, runID string) (Run, error) {
	const query = `
		SELECT run_id, proxy_address, verdict, highest_severity, analyzer_status, finding_count, created_at
		FROM analysis_runs
		WHERE run_id = $1`
	var run Run
	var highest sql.NullString
	var statusJSON []byte
	err := r.db.QueryRowContext(ctx, query, runID).
		Scan(&run.RunID, &run.ProxyAddress, &run.Verdict, &highest, &statusJSON, &run.FindingCount, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, domain.ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("get analysis run: %w", err)
	}
	if highest.Valid {
		sev := domain.Severity(highest.String)
		run.HighestSeverity = &sev
	}
	if err := json.Unmarshal(statusJSON, &run.AnalyzerStatus); err != nil {
		return Run{}, fmt.Errorf("unmarshal analyzer status: %w", err)
	}
	return run, nil
}
