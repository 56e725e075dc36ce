package postgres

// Embedded migrations for the economy engine schema.

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_ledger",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_claims_and_quests",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_challenges",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
		{
			Version: 4,
			Name:    "create_outbox",
			UpSQL:   migration004Up,
			DownSQL: migration004Down,
		},
	}
}

const migration001Up = `
CREATE TABLE IF NOT EXISTS user_balances (
	user_id               TEXT PRIMARY KEY,
	experience            BIGINT NOT NULL DEFAULT 0 CHECK (experience >= 0),
	currency              BIGINT NOT NULL DEFAULT 0 CHECK (currency >= 0),
	daily_login_streak    INTEGER NOT NULL DEFAULT 0,
	last_daily_login_date DATE,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id              UUID PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES user_balances(user_id),
	kind            TEXT NOT NULL CHECK (kind IN ('experience', 'currency')),
	amount          BIGINT NOT NULL,
	source          TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	idempotency_key TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- One logical grant may append an experience and a currency entry under
-- the same key; the pair (key, kind) is what must be unique.
CREATE UNIQUE INDEX IF NOT EXISTS ledger_entries_idem_kind_uq
	ON ledger_entries (idempotency_key, kind);

CREATE INDEX IF NOT EXISTS ledger_entries_user_kind_idx
	ON ledger_entries (user_id, kind, created_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS ledger_entries;
DROP TABLE IF EXISTS user_balances;
`

const migration002Up = `
CREATE TABLE IF NOT EXISTS reward_claims (
	user_id     TEXT NOT NULL,
	reward_type TEXT NOT NULL,
	entity_key  TEXT NOT NULL,
	tier        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, reward_type, entity_key, tier)
);

CREATE TABLE IF NOT EXISTS quest_sets (
	user_id       TEXT PRIMARY KEY,
	day           DATE NOT NULL,
	reroll_tokens INTEGER NOT NULL DEFAULT 0,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS quests (
	id              UUID PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES quest_sets(user_id) ON DELETE CASCADE,
	quest_type      TEXT NOT NULL,
	title           TEXT NOT NULL,
	target          INTEGER NOT NULL CHECK (target > 0),
	progress        INTEGER NOT NULL DEFAULT 0 CHECK (progress >= 0),
	completed       BOOLEAN NOT NULL DEFAULT FALSE,
	claimed         BOOLEAN NOT NULL DEFAULT FALSE,
	xp_reward       BIGINT NOT NULL,
	currency_reward BIGINT NOT NULL,
	slot            INTEGER NOT NULL,
	day             DATE NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS quests_user_idx ON quests (user_id, slot);
`

const migration002Down = `
DROP TABLE IF EXISTS quests;
DROP TABLE IF EXISTS quest_sets;
DROP TABLE IF EXISTS reward_claims;
`

const migration003Up = `
CREATE TABLE IF NOT EXISTS challenges (
	id                UUID PRIMARY KEY,
	course_id         TEXT NOT NULL,
	challenger_id     TEXT NOT NULL,
	challenged_id     TEXT NOT NULL,
	question_ids      TEXT[] NOT NULL,
	bet_amount        BIGINT NOT NULL DEFAULT 0 CHECK (bet_amount >= 0),
	status            TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'completed')),
	challenger_score  INTEGER,
	challenger_time   INTEGER,
	challenger_at     TIMESTAMPTZ,
	challenged_score  INTEGER,
	challenged_time   INTEGER,
	challenged_at     TIMESTAMPTZ,
	winner_id         TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	accepted_at       TIMESTAMPTZ,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS challenges_challenger_idx ON challenges (challenger_id, created_at DESC);
CREATE INDEX IF NOT EXISTS challenges_challenged_idx ON challenges (challenged_id, created_at DESC);
`

const migration003Down = `
DROP TABLE IF EXISTS challenges;
`

const migration004Up = `
CREATE TABLE IF NOT EXISTS notifications (
	id         UUID PRIMARY KEY,
	user_id    TEXT NOT NULL,
	notif_type TEXT NOT NULL,
	payload    JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	sent_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS notifications_pending_idx
	ON notifications (created_at) WHERE sent_at IS NULL;

CREATE TABLE IF NOT EXISTS community_activities (
	id            UUID PRIMARY KEY,
	user_id       TEXT NOT NULL,
	activity_type TEXT NOT NULL,
	metadata      JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS community_activities_created_idx
	ON community_activities (created_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS community_activities;
DROP TABLE IF EXISTS notifications;
`
