// Package store persists procurement runs to SQLite for audit and history.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-temporal-procurement/procurement/types"
)

type Store struct {
	db *sql.DB
}

func InitDB(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS procurement_records (
		record_id            TEXT PRIMARY KEY,
		order_number         TEXT DEFAULT '',
		created_at           DATETIME NOT NULL,
		requested_items      TEXT NOT NULL,
		selected_vendor_id   TEXT DEFAULT '',
		selected_vendor_name TEXT DEFAULT '',
		total_cost           REAL NOT NULL DEFAULT 0,
		total_items          INTEGER NOT NULL DEFAULT 0,
		outcome              TEXT NOT NULL,
		reason               TEXT DEFAULT '',
		requires_approval    INTEGER NOT NULL DEFAULT 0,
		confirmation_session TEXT DEFAULT '',
		lines_json           TEXT DEFAULT '[]'
	);
	CREATE INDEX IF NOT EXISTS idx_pr_created_at ON procurement_records(created_at);
	CREATE INDEX IF NOT EXISTS idx_pr_outcome ON procurement_records(outcome);

	CREATE TABLE IF NOT EXISTS quote_sessions (
		id             TEXT NOT NULL,
		record_id      TEXT NOT NULL,
		vendor_id      TEXT NOT NULL,
		item_ids       TEXT NOT NULL,
		state          TEXT NOT NULL,
		created_at     DATETIME NOT NULL,
		deadline       DATETIME NOT NULL,
		closed_at      DATETIME,
		failure_reason TEXT DEFAULT '',
		PRIMARY KEY (record_id, id)
	);

	CREATE TABLE IF NOT EXISTS quote_records (
		record_id   TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		session_id  TEXT NOT NULL,
		vendor_id   TEXT NOT NULL,
		item_id     TEXT NOT NULL,
		unit_price  REAL NOT NULL,
		quantity    INTEGER NOT NULL,
		received_at DATETIME NOT NULL,
		PRIMARY KEY (record_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_qr_vendor ON quote_records(vendor_id);

	CREATE TABLE IF NOT EXISTS confirmation_attempts (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		record_id  TEXT NOT NULL,
		vendor_id  TEXT NOT NULL,
		session_id TEXT DEFAULT '',
		attempt    INTEGER NOT NULL,
		state      TEXT NOT NULL,
		reason     TEXT DEFAULT '',
		at         DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ca_record ON confirmation_attempts(record_id);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveResult writes a run's record, sessions, quotes and confirmation attempts
// in one transaction. Saving the same record id twice is a no-op, so a retried
// audit activity does not duplicate rows.
func (s *Store) SaveResult(ctx context.Context, result types.ProcurementResult) error {
	rec := result.Record
	if rec.RecordID == "" {
		return fmt.Errorf("record id required")
	}
	lines, err := json.Marshal(rec.Lines)
	if err != nil {
		return fmt.Errorf("encode lines: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO procurement_records (record_id, order_number, created_at, requested_items, selected_vendor_id,
			selected_vendor_name, total_cost, total_items, outcome, reason, requires_approval, confirmation_session, lines_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RecordID, rec.OrderNumber, rec.CreatedAt.UTC(), strings.Join(rec.RequestedItems, ","), rec.SelectedVendorID,
		rec.SelectedVendorName, rec.TotalCost, rec.TotalItems, string(rec.Outcome), rec.Reason, rec.RequiresApproval,
		rec.ConfirmationSessionID, string(lines),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for _, sess := range result.Sessions {
		var closed any
		if !sess.ClosedAt.IsZero() {
			closed = sess.ClosedAt.UTC()
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO quote_sessions (id, record_id, vendor_id, item_ids, state, created_at, deadline, closed_at, failure_reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, rec.RecordID, sess.VendorID, strings.Join(sess.ItemIDs, ","), string(sess.State),
			sess.CreatedAt.UTC(), sess.Deadline.UTC(), closed, sess.FailureReason,
		)
		if err != nil {
			return fmt.Errorf("insert session %s: %w", sess.ID, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO quote_records (record_id, seq, session_id, vendor_id, item_id, unit_price, quantity, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, q := range result.Quotes {
		if _, err := stmt.ExecContext(ctx, rec.RecordID, q.Seq, q.SessionID, q.VendorID, q.ItemID, q.UnitPrice, q.Quantity, q.ReceivedAt.UTC()); err != nil {
			return fmt.Errorf("insert quote %d: %w", q.Seq, err)
		}
	}

	for _, a := range rec.Attempts {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO confirmation_attempts (record_id, vendor_id, session_id, attempt, state, reason, at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.RecordID, a.VendorID, a.SessionID, a.Attempt, string(a.State), a.Reason, a.At.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
	}

	return tx.Commit()
}

// ListRecords returns the most recent records first, with their attempts
func (s *Store) ListRecords(ctx context.Context, limit int) ([]types.ProcurementRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_id, order_number, created_at, requested_items, selected_vendor_id, selected_vendor_name,
			total_cost, total_items, outcome, reason, requires_approval, confirmation_session, lines_json
		 FROM procurement_records ORDER BY created_at DESC, record_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []types.ProcurementRecord
	for rows.Next() {
		var (
			rec       types.ProcurementRecord
			createdAt time.Time
			items     string
			outcome   string
			lines     string
		)
		if err := rows.Scan(&rec.RecordID, &rec.OrderNumber, &createdAt, &items, &rec.SelectedVendorID, &rec.SelectedVendorName,
			&rec.TotalCost, &rec.TotalItems, &outcome, &rec.Reason, &rec.RequiresApproval, &rec.ConfirmationSessionID, &lines); err != nil {
			return nil, err
		}
		rec.CreatedAt = createdAt
		rec.Outcome = types.Outcome(outcome)
		if items != "" {
			rec.RequestedItems = strings.Split(items, ",")
		}
		if err := json.Unmarshal([]byte(lines), &rec.Lines); err != nil {
			return nil, fmt.Errorf("decode lines of %s: %w", rec.RecordID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		attempts, err := s.attempts(ctx, records[i].RecordID)
		if err != nil {
			return nil, err
		}
		records[i].Attempts = attempts
	}
	return records, nil
}

// VendorQuotes returns every quote recorded for a vendor across runs, oldest first
func (s *Store) VendorQuotes(ctx context.Context, vendorID string) ([]types.QuoteRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, session_id, vendor_id, item_id, unit_price, quantity, received_at
		 FROM quote_records WHERE vendor_id = ? ORDER BY received_at, seq`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []types.QuoteRecord
	for rows.Next() {
		var q types.QuoteRecord
		if err := rows.Scan(&q.Seq, &q.SessionID, &q.VendorID, &q.ItemID, &q.UnitPrice, &q.Quantity, &q.ReceivedAt); err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

func (s *Store) attempts(ctx context.Context, recordID string) ([]types.ConfirmationAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vendor_id, session_id, attempt, state, reason, at
		 FROM confirmation_attempts WHERE record_id = ? ORDER BY id`, recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []types.ConfirmationAttempt
	for rows.Next() {
		var (
			a     types.ConfirmationAttempt
			state string
		)
		if err := rows.Scan(&a.VendorID, &a.SessionID, &a.Attempt, &state, &a.Reason, &a.At); err != nil {
			return nil, err
		}
		a.State = types.ConfirmationState(state)
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
