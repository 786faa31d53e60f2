package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: initial schema
	`CREATE TABLE IF NOT EXISTS categorias (
		id                     TEXT PRIMARY KEY,
		nome                   TEXT NOT NULL UNIQUE,
		tipo                   TEXT NOT NULL CHECK(tipo IN ('material', 'servico')),
		descricao              TEXT NOT NULL DEFAULT '',
		limite_dispensa_anual  REAL NOT NULL DEFAULT 0.0,
		limite_dispensa_mensal REAL NOT NULL DEFAULT 0.0,
		alerta_percentual      REAL NOT NULL DEFAULT 70.0,
		bloqueio_percentual    REAL NOT NULL DEFAULT 90.0,
		ativo                  INTEGER NOT NULL DEFAULT 1,
		criada_em              DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		atualizada_em          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS dispensas (
		id             TEXT PRIMARY KEY,
		categoria_id   TEXT NOT NULL REFERENCES categorias(id),
		numero         TEXT NOT NULL DEFAULT '',
		objeto         TEXT NOT NULL DEFAULT '',
		valor          REAL NOT NULL,
		periodo        TEXT NOT NULL CHECK(periodo IN ('anual', 'mensal')),
		referencia_ano INTEGER NOT NULL,
		referencia_mes INTEGER NOT NULL DEFAULT 0,
		status         TEXT NOT NULL DEFAULT 'ativa' CHECK(status IN ('ativa', 'cancelada', 'suspensa')),
		criada_em      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		cancelada_em   DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_dispensas_bucket
		ON dispensas(categoria_id, periodo, referencia_ano, referencia_mes, status);
	CREATE INDEX IF NOT EXISTS idx_dispensas_criada ON dispensas(criada_em);

	CREATE TABLE IF NOT EXISTS alertas (
		id               TEXT PRIMARY KEY,
		categoria_id     TEXT NOT NULL REFERENCES categorias(id),
		tipo_alerta      TEXT NOT NULL CHECK(tipo_alerta IN ('warning', 'error', 'critical')),
		percentual_usado REAL NOT NULL,
		valor_usado      REAL NOT NULL,
		limite_aplicavel REAL NOT NULL,
		periodo          TEXT NOT NULL CHECK(periodo IN ('anual', 'mensal')),
		referencia_ano   INTEGER NOT NULL,
		referencia_mes   INTEGER NOT NULL DEFAULT 0,
		mensagem         TEXT NOT NULL DEFAULT '',
		lida             INTEGER NOT NULL DEFAULT 0,
		criado_em        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- at most one unread alert per severity per bucket
	CREATE UNIQUE INDEX IF NOT EXISTS idx_alertas_nao_lidos
		ON alertas(categoria_id, periodo, referencia_ano, referencia_mes, tipo_alerta)
		WHERE lida = 0;

	CREATE INDEX IF NOT EXISTS idx_alertas_criado ON alertas(criado_em);

	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
