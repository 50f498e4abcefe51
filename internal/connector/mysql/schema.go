package mysql

// Migrations returns the idempotent DDL for the license store. Column names
// and types match the tables created by the PHP server, so an existing
// database is served as-is.
func (c *MySQLConnector) Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS activation_codes (
			id INT AUTO_INCREMENT PRIMARY KEY,
			code VARCHAR(255) NOT NULL UNIQUE,
			license_type VARCHAR(50) NOT NULL,
			duration INT NOT NULL,
			is_used BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS activations (
			id INT AUTO_INCREMENT PRIMARY KEY,
			hardware_id VARCHAR(255) NOT NULL UNIQUE,
			activation_code VARCHAR(255) NOT NULL,
			expiry_date DATETIME NOT NULL,
			license_type VARCHAR(50) NOT NULL,
			activated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (activation_code) REFERENCES activation_codes(code)
				ON DELETE CASCADE ON UPDATE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS admins (
			id INT AUTO_INCREMENT PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			last_login_at DATETIME NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

		`CREATE TABLE IF NOT EXISTS api_keys (
			id INT AUTO_INCREMENT PRIMARY KEY,
			key_hash CHAR(64) NOT NULL UNIQUE,
			key_prefix VARCHAR(32) NOT NULL,
			label VARCHAR(255) NOT NULL DEFAULT '',
			scope VARCHAR(16) NOT NULL DEFAULT 'read',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			expires_at DATETIME NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_used DATETIME NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}
}
