// Package audit provides an HMAC-signed trail of published verdicts.
//
// Every consolidation tick that reaches a publication decision, whether
// published, gated, or discordant, can be persisted as a signed Record in SQLite, so
// fraud operations can reconstruct why a score was (or was not) published
// long after the investigation state is gone. The consolidation engine
// itself stays pure; callers (the CLI, the orchestrator) decide when to
// persist.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	verdictotel "github.com/olorin-ai/verdict/internal/otel"
)

var tracer = verdictotel.Tracer("github.com/olorin-ai/verdict/internal/audit")

// Store persists HMAC-signed verdict records in SQLite.
type Store struct {
	db     *sql.DB
	signer *Signer
}

// Record is the audit entry for one publication decision.
type Record struct {
	ID              string    `json:"id"`
	InvestigationID string    `json:"investigation_id"`
	Timestamp       time.Time `json:"timestamp"`

	Status         string   `json:"status"`
	Published      bool     `json:"published"`
	RiskScore      *float64 `json:"risk_score,omitempty"`
	ConfirmedFraud bool     `json:"confirmed_fraud"`

	ConfidenceScore float64 `json:"confidence_score"`
	ConfidenceLevel string  `json:"confidence_level"`

	ConcernCount   int `json:"concern_count"`
	OverrideCount  int `json:"override_count"`
	StormsDetected int `json:"storms_detected"`

	Issues  []string `json:"issues,omitempty"`
	Actions []string `json:"actions,omitempty"`

	LimitsVersion string `json:"limits_version,omitempty"`
	Signature     string `json:"signature"`
}

// NewStore opens (creating if needed) a verdict audit store at dbPath with
// HMAC signing.
func NewStore(dbPath string, signingKey string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS verdicts (
		id TEXT PRIMARY KEY,
		investigation_id TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		published INTEGER NOT NULL,
		record_json TEXT NOT NULL,
		signature TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_verdicts_investigation ON verdicts(investigation_id);
	CREATE INDEX IF NOT EXISTS idx_verdicts_timestamp ON verdicts(timestamp);
	CREATE INDEX IF NOT EXISTS idx_verdicts_status ON verdicts(status);
	`

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	signer, err := NewSigner(signingKey)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	return &Store{db: db, signer: signer}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Store saves a verdict record with an HMAC signature.
func (s *Store) Store(ctx context.Context, rec *Record) error {
	ctx, span := tracer.Start(ctx, "audit.store",
		trace.WithAttributes(
			attribute.String("audit.id", rec.ID),
			attribute.String("investigation_id", rec.InvestigationID),
			attribute.String("audit.status", rec.Status),
		))
	defer span.End()

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling verdict record: %w", err)
	}

	signature, err := s.signer.Sign(recordJSON)
	if err != nil {
		return fmt.Errorf("signing verdict record: %w", err)
	}
	rec.Signature = signature

	recordJSONWithSig, _ := json.Marshal(rec)

	query := `INSERT INTO verdicts (id, investigation_id, timestamp, status, published, record_json, signature)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.InvestigationID, rec.Timestamp, rec.Status, rec.Published,
		string(recordJSONWithSig), signature,
	)
	if err != nil {
		return fmt.Errorf("storing verdict record: %w", err)
	}
	return nil
}

// Get retrieves a verdict record by ID.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	ctx, span := tracer.Start(ctx, "audit.get",
		trace.WithAttributes(attribute.String("audit.id", id)))
	defer span.End()

	var recordJSON string
	err := s.db.QueryRowContext(ctx, `SELECT record_json FROM verdicts WHERE id = ?`, id).Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("verdict record %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying verdict record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling verdict record: %w", err)
	}
	return &rec, nil
}

// List returns verdict records matching the given filters, newest first.
func (s *Store) List(ctx context.Context, investigationID, status string, from, to time.Time, limit int) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "audit.list",
		trace.WithAttributes(
			attribute.String("investigation_id", investigationID),
			attribute.String("audit.status", status),
		))
	defer span.End()

	query := `SELECT record_json FROM verdicts WHERE 1=1`
	args := []interface{}{}

	if investigationID != "" {
		query += ` AND investigation_id = ?`
		args = append(args, investigationID)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	if !from.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying verdict records: %w", err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
			continue
		}
		results = append(results, rec)
	}

	span.SetAttributes(attribute.Int("audit.count", len(results)))
	return results, nil
}

// Timeline returns up to before+after+1 records around one verdict for the
// same investigation, in chronological order. It answers "what did the
// engine decide in the ticks surrounding this one".
func (s *Store) Timeline(ctx context.Context, aroundID string, before, after int) ([]Record, error) {
	ctx, span := tracer.Start(ctx, "audit.timeline",
		trace.WithAttributes(
			attribute.String("around_id", aroundID),
			attribute.Int("before", before),
			attribute.Int("after", after),
		))
	defer span.End()

	target, err := s.Get(ctx, aroundID)
	if err != nil {
		return nil, fmt.Errorf("finding target verdict: %w", err)
	}

	beforeQuery := `SELECT record_json FROM verdicts
	                WHERE investigation_id = ? AND timestamp < ?
	                ORDER BY timestamp DESC LIMIT ?`
	beforeRows, err := s.db.QueryContext(ctx, beforeQuery, target.InvestigationID, target.Timestamp, before)
	if err != nil {
		return nil, fmt.Errorf("querying before timeline: %w", err)
	}

	var beforeEntries []Record
	for beforeRows.Next() {
		var recordJSON string
		if err := beforeRows.Scan(&recordJSON); err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
			continue
		}
		beforeEntries = append(beforeEntries, rec)
	}
	beforeRows.Close()

	// beforeEntries came back newest-first; reverse into chronological order
	var results []Record
	for i := len(beforeEntries) - 1; i >= 0; i-- {
		results = append(results, beforeEntries[i])
	}

	results = append(results, *target)

	afterQuery := `SELECT record_json FROM verdicts
	               WHERE investigation_id = ? AND timestamp > ?
	               ORDER BY timestamp ASC LIMIT ?`
	afterRows, err := s.db.QueryContext(ctx, afterQuery, target.InvestigationID, target.Timestamp, after)
	if err != nil {
		return nil, fmt.Errorf("querying after timeline: %w", err)
	}
	defer afterRows.Close()

	for afterRows.Next() {
		var recordJSON string
		if err := afterRows.Scan(&recordJSON); err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
			continue
		}
		results = append(results, rec)
	}

	span.SetAttributes(attribute.Int("audit.count", len(results)))
	return results, nil
}

// Verify checks the HMAC signature integrity of a stored record.
func (s *Store) Verify(ctx context.Context, id string) (bool, error) {
	ctx, span := tracer.Start(ctx, "audit.verify",
		trace.WithAttributes(attribute.String("audit.id", id)))
	defer span.End()

	rec, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}

	signature := rec.Signature
	rec.Signature = ""

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("marshaling for verification: %w", err)
	}
	return s.signer.Verify(recordJSON, signature), nil
}
