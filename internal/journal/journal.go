package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/betbot/oddsbot/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Journal 订单执行结果的只追加审计日志（sqlite）。启动时不会回读重建状态。
type Journal struct {
	db   *sqlx.DB
	mode func() string
}

// Entry 一条执行记录
type Entry struct {
	ID           string          `json:"id"`
	Mode         string          `json:"mode"`
	TokenID      string          `json:"token_id"`
	Side         domain.Side     `json:"side"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	Success      bool            `json:"success"`
	OrderID      string          `json:"order_id,omitempty"`
	ActualPrice  decimal.Decimal `json:"actual_price"`
	ActualAmount decimal.Decimal `json:"actual_amount"`
	Error        string          `json:"error,omitempty"`
	At           time.Time       `json:"at"`
}

func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir journal dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)

	j := &Journal{db: db, mode: func() string { return "" }}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

// SetModeFunc 记录时附带当前交易模式
func (j *Journal) SetModeFunc(fn func() string) {
	if fn != nil {
		j.mode = fn
	}
}

func (j *Journal) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS executions (
  id TEXT PRIMARY KEY,
  mode TEXT NOT NULL,
  token_id TEXT NOT NULL,
  side TEXT NOT NULL,
  amount TEXT NOT NULL,
  price TEXT NOT NULL,
  success INTEGER NOT NULL,
  order_id TEXT,
  actual_price TEXT,
  actual_amount TEXT,
  error TEXT,
  at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_at ON executions(at);`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate journal: %w", err)
		}
	}
	return nil
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// row executions 表的一行；金额与价格按十进制字符串存储
type row struct {
	ID           string         `db:"id"`
	Mode         string         `db:"mode"`
	TokenID      string         `db:"token_id"`
	Side         string         `db:"side"`
	Amount       string         `db:"amount"`
	Price        string         `db:"price"`
	Success      bool           `db:"success"`
	OrderID      sql.NullString `db:"order_id"`
	ActualPrice  string         `db:"actual_price"`
	ActualAmount string         `db:"actual_amount"`
	Error        sql.NullString `db:"error"`
	At           string         `db:"at"`
}

func (r row) entry() Entry {
	e := Entry{
		ID:      r.ID,
		Mode:    r.Mode,
		TokenID: r.TokenID,
		Side:    domain.Side(r.Side),
		Success: r.Success,
		OrderID: r.OrderID.String,
		Error:   r.Error.String,
	}
	e.Amount, _ = decimal.NewFromString(r.Amount)
	e.Price, _ = decimal.NewFromString(r.Price)
	e.ActualPrice, _ = decimal.NewFromString(r.ActualPrice)
	e.ActualAmount, _ = decimal.NewFromString(r.ActualAmount)
	e.At, _ = time.Parse(time.RFC3339Nano, r.At)
	return e
}

// Record 追加一条结果
func (j *Journal) Record(ctx context.Context, req domain.OrderRequest, res domain.ExecutionResult) error {
	at := res.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	r := row{
		ID:           uuid.NewString(),
		Mode:         j.mode(),
		TokenID:      req.TokenID,
		Side:         string(req.Side),
		Amount:       req.Amount.String(),
		Price:        req.Price.String(),
		Success:      res.Success,
		OrderID:      sql.NullString{String: res.OrderID, Valid: res.OrderID != ""},
		ActualPrice:  res.ActualPrice.String(),
		ActualAmount: res.ActualAmount.String(),
		Error:        sql.NullString{String: res.Error, Valid: res.Error != ""},
		At:           at.UTC().Format(time.RFC3339Nano),
	}
	_, err := j.db.NamedExecContext(ctx, `
INSERT INTO executions(id, mode, token_id, side, amount, price, success, order_id, actual_price, actual_amount, error, at)
VALUES(:id, :mode, :token_id, :side, :amount, :price, :success, :order_id, :actual_price, :actual_amount, :error, :at)
`, r)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// Recent 最近的执行记录（新的在前），供运营接口展示
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var rows []row
	err := j.db.SelectContext(ctx, &rows, `
SELECT id, mode, token_id, side, amount, price, success, order_id, actual_price, actual_amount, error, at
FROM executions ORDER BY at DESC, rowid DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query executions: %w", err)
	}
	out := make([]Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	return out, nil
}
