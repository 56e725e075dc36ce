package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nexlearn/nexlearn-economy/internal/domain/ledger"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
	"github.com/nexlearn/nexlearn-economy/pkg/retry"
)

// LedgerRepository implements ledger.Repository using PostgreSQL.
//
// ApplyDelta serializes per user through a row-level lock on the balance
// row: concurrent writers for the same user queue on SELECT ... FOR
// UPDATE while different users touch different rows and never contend.
type LedgerRepository struct {
	conn    *Connection
	retrier *retry.Retrier
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{
		conn:    conn,
		retrier: retry.TxConflictRetrier(),
	}
}

// CreateBalance implements ledger.Repository.
func (r *LedgerRepository) CreateBalance(ctx context.Context, userID string) (*ledger.UserBalance, error) {
	if userID == "" {
		return nil, shared.NewDomainError("ledger", "CreateBalance", shared.ErrEmptyValue, "user id is required")
	}

	query := `
		INSERT INTO user_balances (user_id)
		VALUES ($1)
		RETURNING user_id, experience, currency, daily_login_streak, last_daily_login_date, created_at, updated_at`

	bal, err := scanBalance(r.conn.QueryRow(ctx, query, userID))
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, shared.ErrBalanceExists
		}
		return nil, shared.WrapError("ledger", "CreateBalance", shared.ErrExternalService, "insert failed", err)
	}
	return bal, nil
}

// GetBalance implements ledger.Repository.
func (r *LedgerRepository) GetBalance(ctx context.Context, userID string) (*ledger.UserBalance, error) {
	query := `
		SELECT user_id, experience, currency, daily_login_streak, last_daily_login_date, created_at, updated_at
		FROM user_balances
		WHERE user_id = $1`

	bal, err := scanBalance(r.conn.QueryRow(ctx, query, userID))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrBalanceNotFound
		}
		return nil, shared.WrapError("ledger", "GetBalance", shared.ErrExternalService, "query failed", err)
	}
	return bal, nil
}

// ApplyDelta implements ledger.Repository. Transaction conflicts are
// retried transparently a bounded number of times before surfacing
// ErrTooManyTxConflicts.
func (r *LedgerRepository) ApplyDelta(ctx context.Context, userID string, delta ledger.Delta) (*ledger.ApplyResult, error) {
	return r.apply(ctx, userID, delta, nil)
}

// ApplyDailyLogin implements ledger.Repository. The streak columns are
// written by the same transaction that appends the bonus entry.
func (r *LedgerRepository) ApplyDailyLogin(ctx context.Context, userID string, delta ledger.Delta, streak int, loginDate time.Time) (*ledger.ApplyResult, error) {
	return r.apply(ctx, userID, delta, &loginUpdate{streak: streak, loginDate: loginDate.UTC()})
}

// loginUpdate carries the streak bookkeeping into the balance write.
type loginUpdate struct {
	streak    int
	loginDate time.Time
}

func (r *LedgerRepository) apply(ctx context.Context, userID string, delta ledger.Delta, login *loginUpdate) (*ledger.ApplyResult, error) {
	if err := delta.Validate(); err != nil {
		return nil, err
	}

	var result *ledger.ApplyResult
	err := r.retrier.Do(ctx, func(ctx context.Context) error {
		res, err := r.applyOnce(ctx, userID, delta, login)
		if err != nil {
			if IsSerializationFailure(err) {
				return retry.Retryable(err)
			}
			return retry.Permanent(err)
		}
		result = res
		return nil
	})
	if err != nil {
		if IsSerializationFailure(err) {
			return nil, shared.ErrTooManyTxConflicts
		}
		return nil, err
	}
	return result, nil
}

// applyOnce runs the read-modify-write in a single transaction.
func (r *LedgerRepository) applyOnce(ctx context.Context, userID string, delta ledger.Delta, login *loginUpdate) (*ledger.ApplyResult, error) {
	var result *ledger.ApplyResult

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		bal, err := scanBalance(tx.QueryRow(ctx, `
			SELECT user_id, experience, currency, daily_login_streak, last_daily_login_date, created_at, updated_at
			FROM user_balances
			WHERE user_id = $1
			FOR UPDATE`, userID))
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrBalanceNotFound
			}
			return err
		}

		// Idempotent retry: the key has been applied before.
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE idempotency_key = $1)`,
			delta.IdempotencyKey).Scan(&exists); err != nil {
			return err
		}
		if exists {
			result = &ledger.ApplyResult{Balance: bal, Applied: false}
			return nil
		}

		if bal.Currency+delta.Currency < 0 {
			return shared.ErrNegativeBalance
		}

		now := time.Now().UTC()
		if login != nil {
			if _, err := tx.Exec(ctx, `
				UPDATE user_balances
				SET experience = experience + $2, currency = currency + $3,
				    daily_login_streak = $4, last_daily_login_date = $5, updated_at = $6
				WHERE user_id = $1`,
				userID, delta.Experience, delta.Currency, login.streak, login.loginDate, now); err != nil {
				return err
			}
		} else if _, err := tx.Exec(ctx, `
			UPDATE user_balances
			SET experience = experience + $2, currency = currency + $3, updated_at = $4
			WHERE user_id = $1`,
			userID, delta.Experience, delta.Currency, now); err != nil {
			return err
		}

		// Append history. A grant touching only one log appends one
		// entry; a zero-zero delta still records its key on the
		// experience log so the retry is recognized.
		if delta.Experience != 0 || delta.Currency == 0 {
			if err := insertEntry(ctx, tx, userID, ledger.KindExperience, delta.Experience, delta, now); err != nil {
				return err
			}
		}
		if delta.Currency != 0 {
			if err := insertEntry(ctx, tx, userID, ledger.KindCurrency, delta.Currency, delta, now); err != nil {
				return err
			}
		}

		bal.Experience += delta.Experience
		bal.Currency += delta.Currency
		if login != nil {
			bal.DailyLoginStreak = login.streak
			bal.LastDailyLoginDate = login.loginDate
		}
		bal.UpdatedAt = now
		result = &ledger.ApplyResult{Balance: bal, Applied: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func insertEntry(ctx context.Context, tx pgx.Tx, userID string, kind ledger.EntryKind, amount int64, delta ledger.Delta, now time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, user_id, kind, amount, source, description, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), userID, string(kind), amount, delta.Source, delta.Description, delta.IdempotencyKey, now)
	return err
}

// HasEntry implements ledger.Repository.
func (r *LedgerRepository) HasEntry(ctx context.Context, idempotencyKey string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE idempotency_key = $1)`,
		idempotencyKey).Scan(&exists)
	if err != nil {
		return false, shared.WrapError("ledger", "HasEntry", shared.ErrExternalService, "query failed", err)
	}
	return exists, nil
}

// ListEntries implements ledger.Repository.
func (r *LedgerRepository) ListEntries(ctx context.Context, userID string, kind ledger.EntryKind, limit int) ([]*ledger.Entry, error) {
	query := `
		SELECT id, user_id, kind, amount, source, description, idempotency_key, created_at
		FROM ledger_entries
		WHERE user_id = $1 AND kind = $2
		ORDER BY created_at DESC`
	args := []interface{}{userID, string(kind)}
	if limit > 0 {
		query += " LIMIT $3"
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.WrapError("ledger", "ListEntries", shared.ErrExternalService, "query failed", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		e := &ledger.Entry{}
		var kindStr string
		if err := rows.Scan(&e.ID, &e.UserID, &kindStr, &e.Amount, &e.Source, &e.Description, &e.IdempotencyKey, &e.CreatedAt); err != nil {
			return nil, shared.WrapError("ledger", "ListEntries", shared.ErrExternalService, "scan failed", err)
		}
		e.Kind = ledger.EntryKind(kindStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SumEntries implements ledger.Repository.
func (r *LedgerRepository) SumEntries(ctx context.Context, userID string, kind ledger.EntryKind) (int64, error) {
	var sum int64
	err := r.conn.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE user_id = $1 AND kind = $2`,
		userID, string(kind)).Scan(&sum)
	if err != nil {
		return 0, shared.WrapError("ledger", "SumEntries", shared.ErrExternalService, "query failed", err)
	}
	return sum, nil
}

// scanBalance scans one balance row.
func scanBalance(row pgx.Row) (*ledger.UserBalance, error) {
	bal := &ledger.UserBalance{}
	var lastLogin *time.Time
	if err := row.Scan(&bal.UserID, &bal.Experience, &bal.Currency, &bal.DailyLoginStreak, &lastLogin, &bal.CreatedAt, &bal.UpdatedAt); err != nil {
		return nil, err
	}
	if lastLogin != nil {
		bal.LastDailyLoginDate = lastLogin.UTC()
	}
	return bal, nil
}
