package mssql

// Migrations returns the idempotent DDL for the license store. SQL Server
// has no CREATE TABLE IF NOT EXISTS, so each statement checks the catalog.
func (c *MSSQLConnector) Migrations() []string {
	return []string{
		`IF OBJECT_ID(N'dbo.activation_codes', N'U') IS NULL
		CREATE TABLE dbo.activation_codes (
			id BIGINT IDENTITY(1,1) PRIMARY KEY,
			code NVARCHAR(64) NOT NULL CONSTRAINT uq_activation_codes_code UNIQUE,
			license_type NVARCHAR(50) NOT NULL,
			duration INT NOT NULL CHECK (duration > 0),
			is_used BIT NOT NULL DEFAULT 0,
			created_at DATETIME2(0) NOT NULL DEFAULT SYSUTCDATETIME()
		)`,

		`IF OBJECT_ID(N'dbo.activations', N'U') IS NULL
		CREATE TABLE dbo.activations (
			id BIGINT IDENTITY(1,1) PRIMARY KEY,
			hardware_id NVARCHAR(255) NOT NULL CONSTRAINT uq_activations_hardware_id UNIQUE,
			activation_code NVARCHAR(64) NOT NULL
				CONSTRAINT fk_activations_code REFERENCES dbo.activation_codes(code)
				ON DELETE CASCADE ON UPDATE CASCADE,
			expiry_date DATETIME2(0) NOT NULL,
			license_type NVARCHAR(50) NOT NULL,
			activated_at DATETIME2(0) NOT NULL DEFAULT SYSUTCDATETIME()
		)`,

		`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'idx_activations_code')
		CREATE INDEX idx_activations_code ON dbo.activations(activation_code)`,

		`IF OBJECT_ID(N'dbo.admins', N'U') IS NULL
		CREATE TABLE dbo.admins (
			id BIGINT IDENTITY(1,1) PRIMARY KEY,
			email NVARCHAR(255) NOT NULL CONSTRAINT uq_admins_email UNIQUE,
			password_hash NVARCHAR(255) NOT NULL,
			name NVARCHAR(255) NOT NULL DEFAULT '',
			is_active BIT NOT NULL DEFAULT 1,
			last_login_at DATETIME2(0) NULL,
			created_at DATETIME2(0) NOT NULL DEFAULT SYSUTCDATETIME(),
			updated_at DATETIME2(0) NOT NULL DEFAULT SYSUTCDATETIME()
		)`,

		`IF OBJECT_ID(N'dbo.api_keys', N'U') IS NULL
		CREATE TABLE dbo.api_keys (
			id BIGINT IDENTITY(1,1) PRIMARY KEY,
			key_hash CHAR(64) NOT NULL CONSTRAINT uq_api_keys_hash UNIQUE,
			key_prefix NVARCHAR(32) NOT NULL,
			label NVARCHAR(255) NOT NULL DEFAULT '',
			scope NVARCHAR(16) NOT NULL DEFAULT 'read',
			is_active BIT NOT NULL DEFAULT 1,
			expires_at DATETIME2(0) NULL,
			created_at DATETIME2(0) NOT NULL DEFAULT SYSUTCDATETIME(),
			last_used DATETIME2(0) NULL
		)`,
	}
}
