package postgres

// Migrations returns the idempotent DDL for the license store.
func (c *PostgresConnector) Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS activation_codes (
			id BIGSERIAL PRIMARY KEY,
			code VARCHAR(64) NOT NULL UNIQUE,
			license_type VARCHAR(50) NOT NULL,
			duration INTEGER NOT NULL CHECK (duration > 0),
			is_used BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS activations (
			id BIGSERIAL PRIMARY KEY,
			hardware_id VARCHAR(255) NOT NULL UNIQUE,
			activation_code VARCHAR(64) NOT NULL
				REFERENCES activation_codes(code) ON DELETE CASCADE ON UPDATE CASCADE,
			expiry_date TIMESTAMPTZ NOT NULL,
			license_type VARCHAR(50) NOT NULL,
			activated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_activations_code ON activations(activation_code)`,

		`CREATE TABLE IF NOT EXISTS admins (
			id BIGSERIAL PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS api_keys (
			id BIGSERIAL PRIMARY KEY,
			key_hash CHAR(64) NOT NULL UNIQUE,
			key_prefix VARCHAR(32) NOT NULL,
			label VARCHAR(255) NOT NULL DEFAULT '',
			scope VARCHAR(16) NOT NULL DEFAULT 'read',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_used TIMESTAMPTZ
		)`,
	}
}
