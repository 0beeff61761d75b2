package postgres

type migration struct {
	version int
	sql     string
}

// migrations — схема сервиса. Новые миграции только добавляются в конец.
var migrations = []migration{
	{1, `
		CREATE TABLE IF NOT EXISTS coin_transactions (
			id                BIGSERIAL PRIMARY KEY,
			user_id           BIGINT      NOT NULL,
			direction         TEXT        NOT NULL CHECK (direction IN ('earning', 'spending', 'adjustment')),
			category          TEXT        NOT NULL,
			amount            BIGINT      NOT NULL CHECK (amount > 0),
			description       TEXT        NOT NULL DEFAULT '',
			metadata          JSONB       NOT NULL DEFAULT '{}'::jsonb,
			related_entity_id TEXT,
			source            TEXT        NOT NULL DEFAULT 'core',
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_coin_transactions_user ON coin_transactions (user_id, id DESC);
		CREATE INDEX IF NOT EXISTS idx_coin_transactions_category ON coin_transactions (user_id, category, created_at);

		CREATE OR REPLACE FUNCTION coin_transactions_immutable() RETURNS trigger AS $$
		BEGIN
			RAISE EXCEPTION 'coin_transactions is append-only';
		END;
		$$ LANGUAGE plpgsql;

		DROP TRIGGER IF EXISTS trg_coin_transactions_immutable ON coin_transactions;
		CREATE TRIGGER trg_coin_transactions_immutable
			BEFORE UPDATE OR DELETE ON coin_transactions
			FOR EACH ROW EXECUTE FUNCTION coin_transactions_immutable();
	`},
	{2, `
		CREATE TABLE IF NOT EXISTS casino_plays (
			play_id        UUID PRIMARY KEY,
			user_id        BIGINT      NOT NULL,
			game           TEXT        NOT NULL,
			wager          BIGINT      NOT NULL,
			payout         BIGINT      NOT NULL,
			classification TEXT        NOT NULL,
			entry          TEXT        NOT NULL,
			perk_applied   TEXT        NOT NULL DEFAULT '',
			special        TEXT        NOT NULL DEFAULT '',
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_casino_plays_user ON casino_plays (user_id, created_at DESC);

		CREATE TABLE IF NOT EXISTS casino_owed_payouts (
			id             BIGSERIAL PRIMARY KEY,
			play_id        UUID        NOT NULL UNIQUE,
			user_id        BIGINT      NOT NULL,
			amount         BIGINT      NOT NULL CHECK (amount > 0),
			reason         TEXT        NOT NULL DEFAULT '',
			attempts       INTEGER     NOT NULL DEFAULT 0,
			last_error     TEXT        NOT NULL DEFAULT '',
			resolved_tx_id BIGINT,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at    TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_casino_owed_pending ON casino_owed_payouts (id) WHERE resolved_tx_id IS NULL;
	`},
	{3, `
		CREATE TABLE IF NOT EXISTS perk_entitlements (
			user_id         BIGINT      NOT NULL,
			entitlement_key TEXT        NOT NULL,
			equipped        BOOLEAN     NOT NULL DEFAULT TRUE,
			granted_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, entitlement_key)
		);
	`},
}
