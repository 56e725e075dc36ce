package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/nexlearn/nexlearn-economy/internal/domain/challenge"
	"github.com/nexlearn/nexlearn-economy/internal/domain/shared"
)

// ChallengeRepository implements challenge.Repository using PostgreSQL.
// Update locks the row with SELECT ... FOR UPDATE for the duration of
// the mutation, so concurrent updates for the same challenge serialize
// and the completion status flip happens exactly once.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

const challengeColumns = `
	id, course_id, challenger_id, challenged_id, question_ids, bet_amount, status,
	challenger_score, challenger_time, challenger_at,
	challenged_score, challenged_time, challenged_at,
	winner_id, created_at, accepted_at, updated_at`

// Create implements challenge.Repository.
func (r *ChallengeRepository) Create(ctx context.Context, c *challenge.Challenge) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO challenges (id, course_id, challenger_id, challenged_id, question_ids,
		                        bet_amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.CourseID, c.ChallengerID, c.ChallengedID, c.QuestionIDs,
		c.BetAmount, string(c.Status), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrConflict
		}
		return shared.WrapError("challenge", "Create", shared.ErrExternalService, "insert failed", err)
	}
	return nil
}

// GetByID implements challenge.Repository.
func (r *ChallengeRepository) GetByID(ctx context.Context, id string) (*challenge.Challenge, error) {
	c, err := scanChallenge(r.conn.QueryRow(ctx, `
		SELECT `+challengeColumns+` FROM challenges WHERE id = $1`, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChallengeNotFound
		}
		return nil, shared.WrapError("challenge", "GetByID", shared.ErrExternalService, "query failed", err)
	}
	return c, nil
}

// Update implements challenge.Repository.
func (r *ChallengeRepository) Update(ctx context.Context, id string, fn func(c *challenge.Challenge) error) (*challenge.Challenge, error) {
	var updated *challenge.Challenge

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		c, err := scanChallenge(tx.QueryRow(ctx, `
			SELECT `+challengeColumns+` FROM challenges WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrChallengeNotFound
			}
			return err
		}

		if err := fn(c); err != nil {
			return err
		}

		c.UpdatedAt = time.Now().UTC()
		if err := writeChallenge(ctx, tx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListForUser implements challenge.Repository.
func (r *ChallengeRepository) ListForUser(ctx context.Context, userID string, limit int) ([]*challenge.Challenge, error) {
	query := `
		SELECT ` + challengeColumns + `
		FROM challenges
		WHERE challenger_id = $1 OR challenged_id = $1
		ORDER BY created_at DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.WrapError("challenge", "ListForUser", shared.ErrExternalService, "query failed", err)
	}
	defer rows.Close()

	var challenges []*challenge.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, shared.WrapError("challenge", "ListForUser", shared.ErrExternalService, "scan failed", err)
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

func writeChallenge(ctx context.Context, tx pgx.Tx, c *challenge.Challenge) error {
	var acceptedAt *time.Time
	if !c.AcceptedAt.IsZero() {
		t := c.AcceptedAt
		acceptedAt = &t
	}

	var chScore, chTime, cdScore, cdTime *int
	var chAt, cdAt *time.Time
	if res := c.ChallengerResult; res != nil {
		chScore, chTime, chAt = &res.Score, &res.ElapsedSeconds, &res.RecordedAt
	}
	if res := c.ChallengedResult; res != nil {
		cdScore, cdTime, cdAt = &res.Score, &res.ElapsedSeconds, &res.RecordedAt
	}

	_, err := tx.Exec(ctx, `
		UPDATE challenges
		SET status = $2,
		    challenger_score = $3, challenger_time = $4, challenger_at = $5,
		    challenged_score = $6, challenged_time = $7, challenged_at = $8,
		    winner_id = $9, accepted_at = $10, updated_at = $11
		WHERE id = $1`,
		c.ID, string(c.Status),
		chScore, chTime, chAt,
		cdScore, cdTime, cdAt,
		c.WinnerID, acceptedAt, c.UpdatedAt)
	return err
}

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	c := &challenge.Challenge{}
	var status string
	var acceptedAt *time.Time
	var chScore, chTime, cdScore, cdTime *int
	var chAt, cdAt *time.Time

	if err := row.Scan(&c.ID, &c.CourseID, &c.ChallengerID, &c.ChallengedID, &c.QuestionIDs,
		&c.BetAmount, &status,
		&chScore, &chTime, &chAt,
		&cdScore, &cdTime, &cdAt,
		&c.WinnerID, &c.CreatedAt, &acceptedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}

	c.Status = challenge.Status(status)
	if acceptedAt != nil {
		c.AcceptedAt = acceptedAt.UTC()
	}
	if chScore != nil {
		c.ChallengerResult = &challenge.Result{Score: *chScore, ElapsedSeconds: *chTime, RecordedAt: chAt.UTC()}
	}
	if cdScore != nil {
		c.ChallengedResult = &challenge.Result{Score: *cdScore, ElapsedSeconds: *cdTime, RecordedAt: cdAt.UTC()}
	}
	return c, nil
}
