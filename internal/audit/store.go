// Package audit keeps an append-only local record of every guardian cycle
// and anchors cycles that took actions to an on-chain log contract.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereumdegen/stark-guardian/internal/model"
	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// Entry is one audit record, a compact projection of a risk report.
type Entry struct {
	ReportID              string                  `json:"report_id"`
	Timestamp             time.Time               `json:"timestamp"`
	Wallet                string                  `json:"wallet"`
	PortfolioRiskScore    int                     `json:"portfolio_risk_score"`
	PortfolioRiskCategory model.RiskCategory      `json:"portfolio_risk_category"`
	PositionsCount        int                     `json:"positions_count"`
	ActionsTaken          []model.ExecutionResult `json:"actions_taken"`
	PortfolioTotalUSD     float64                 `json:"portfolio_total_usd"`
	ContentHash           string                  `json:"content_hash"`
	OnChainTx             string                  `json:"onchain_tx,omitempty"`
}

type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit store directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create audit lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS audit_entries (
			report_id TEXT PRIMARY KEY,
			wallet TEXT NOT NULL,
			risk_score INTEGER NOT NULL,
			risk_category TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_audit_wallet_created ON audit_entries(wallet, created_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init audit schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(entry Entry) error {
	if strings.TrimSpace(entry.ReportID) == "" {
		return fmt.Errorf("save audit entry: missing report id")
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock audit store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock audit store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	createdUnix := entry.Timestamp.UTC().Unix()
	if createdUnix <= 0 {
		createdUnix = time.Now().UTC().Unix()
	}

	_, err = s.db.Exec(`
		INSERT INTO audit_entries (report_id, wallet, risk_score, risk_category, created_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(report_id) DO UPDATE SET
			risk_score=excluded.risk_score,
			risk_category=excluded.risk_category,
			payload=excluded.payload
	`, entry.ReportID, entry.Wallet, entry.PortfolioRiskScore, string(entry.PortfolioRiskCategory), createdUnix, payload)
	if err != nil {
		return fmt.Errorf("save audit entry: %w", err)
	}
	return nil
}

// List returns the most recent entries, optionally filtered by wallet.
func (s *Store) List(wallet string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(wallet) == "" {
		rows, err = s.db.Query("SELECT payload FROM audit_entries ORDER BY created_at DESC LIMIT ?", limit)
	} else {
		rows, err = s.db.Query("SELECT payload FROM audit_entries WHERE wallet = ? ORDER BY created_at DESC LIMIT ?", wallet, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		var entry Entry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, fmt.Errorf("decode audit row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return entries, nil
}
