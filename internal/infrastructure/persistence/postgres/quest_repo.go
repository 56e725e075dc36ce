package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nexlearn/nexlearn-economy/internal/domain/quest"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

// QuestRepository implements quest.Repository using PostgreSQL. A daily
// set is stored as one quest_sets row plus its quests; SaveDailySet
// rewrites the quests wholesale, which covers both the daily rotation
// and single-slot rerolls.
type QuestRepository struct {
	conn *Connection
}

// NewQuestRepository creates a new QuestRepository.
func NewQuestRepository(conn *Connection) *QuestRepository {
	return &QuestRepository{conn: conn}
}

// GetDailySet implements quest.Repository.
func (r *QuestRepository) GetDailySet(ctx context.Context, userID string) (*quest.DailySet, error) {
	set := &quest.DailySet{UserID: userID}

	err := r.conn.QueryRow(ctx, `
		SELECT day, reroll_tokens FROM quest_sets WHERE user_id = $1`,
		userID).Scan(&set.Day, &set.RerollTokens)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrQuestNotFound
		}
		return nil, shared.WrapError("quest", "GetDailySet", shared.ErrExternalService, "query failed", err)
	}
	set.Day = set.Day.UTC()

	rows, err := r.conn.Query(ctx, `
		SELECT id, quest_type, title, target, progress, completed, claimed,
		       xp_reward, currency_reward, slot, day, created_at, updated_at
		FROM quests
		WHERE user_id = $1
		ORDER BY slot`,
		userID)
	if err != nil {
		return nil, shared.WrapError("quest", "GetDailySet", shared.ErrExternalService, "query failed", err)
	}
	defer rows.Close()

	for rows.Next() {
		q := &quest.Quest{UserID: userID}
		var typeStr string
		if err := rows.Scan(&q.ID, &typeStr, &q.Title, &q.Target, &q.Progress, &q.Completed, &q.Claimed,
			&q.XPReward, &q.CurrencyReward, &q.Slot, &q.Day, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, shared.WrapError("quest", "GetDailySet", shared.ErrExternalService, "scan failed", err)
		}
		q.Type = quest.Type(typeStr)
		q.Day = q.Day.UTC()
		set.Quests = append(set.Quests, q)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("quest", "GetDailySet", shared.ErrExternalService, "rows failed", err)
	}
	return set, nil
}

// SaveDailySet implements quest.Repository.
func (r *QuestRepository) SaveDailySet(ctx context.Context, set *quest.DailySet) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `
			INSERT INTO quest_sets (user_id, day, reroll_tokens, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id)
			DO UPDATE SET day = $2, reroll_tokens = $3, updated_at = $4`,
			set.UserID, set.Day, set.RerollTokens, now); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM quests WHERE user_id = $1`, set.UserID); err != nil {
			return err
		}

		for _, q := range set.Quests {
			if _, err := tx.Exec(ctx, `
				INSERT INTO quests (id, user_id, quest_type, title, target, progress, completed, claimed,
				                    xp_reward, currency_reward, slot, day, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
				q.ID, q.UserID, string(q.Type), q.Title, q.Target, q.Progress, q.Completed, q.Claimed,
				q.XPReward, q.CurrencyReward, q.Slot, q.Day, q.CreatedAt, q.UpdatedAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return shared.WrapError("quest", "SaveDailySet", shared.ErrExternalService, "save failed", err)
	}
	return nil
}

// UpdateQuest implements quest.Repository.
func (r *QuestRepository) UpdateQuest(ctx context.Context, q *quest.Quest) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE quests
		SET progress = $2, completed = $3, claimed = $4, updated_at = $5
		WHERE id = $1`,
		q.ID, q.Progress, q.Completed, q.Claimed, q.UpdatedAt)
	if err != nil {
		return shared.WrapError("quest", "UpdateQuest", shared.ErrExternalService, "update failed", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrQuestNotFound
	}
	return nil
}

// AdvanceQuests implements quest.Repository. A single UPDATE increments
// and caps the progress in place, so concurrent bus deliveries for the
// same user serialize on the row instead of overwriting each other with
// stale absolute values. Rows flipping to completed belong to this call
// alone because the WHERE clause excludes already-completed quests.
func (r *QuestRepository) AdvanceQuests(ctx context.Context, userID string, questType quest.Type, n int) ([]*quest.Quest, error) {
	rows, err := r.conn.Query(ctx, `
		UPDATE quests
		SET progress = LEAST(progress + $3, target),
		    completed = progress + $3 >= target,
		    updated_at = NOW()
		WHERE user_id = $1 AND quest_type = $2 AND NOT completed AND NOT claimed
		RETURNING id, quest_type, title, target, progress, completed, claimed,
		          xp_reward, currency_reward, slot, day, created_at, updated_at`,
		userID, string(questType), n)
	if err != nil {
		return nil, shared.WrapError("quest", "AdvanceQuests", shared.ErrExternalService, "update failed", err)
	}
	defer rows.Close()

	var completed []*quest.Quest
	for rows.Next() {
		q := &quest.Quest{UserID: userID}
		var typeStr string
		if err := rows.Scan(&q.ID, &typeStr, &q.Title, &q.Target, &q.Progress, &q.Completed, &q.Claimed,
			&q.XPReward, &q.CurrencyReward, &q.Slot, &q.Day, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, shared.WrapError("quest", "AdvanceQuests", shared.ErrExternalService, "scan failed", err)
		}
		q.Type = quest.Type(typeStr)
		q.Day = q.Day.UTC()
		if q.Completed {
			completed = append(completed, q)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, shared.WrapError("quest", "AdvanceQuests", shared.ErrExternalService, "rows failed", err)
	}
	return completed, nil
}

// ListStaleUsers implements quest.Repository.
func (r *QuestRepository) ListStaleUsers(ctx context.Context, day time.Time, limit int) ([]string, error) {
	query := `SELECT user_id FROM quest_sets WHERE day < $1 ORDER BY day`
	args := []interface{}{day.UTC()}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.WrapError("quest", "ListStaleUsers", shared.ErrExternalService, "query failed", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, shared.WrapError("quest", "ListStaleUsers", shared.ErrExternalService, "scan failed", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}
