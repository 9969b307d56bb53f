package store

import (
	"context"
	"fmt"
)

const (
	ViewName          = "vista_muy_interesante"
	PatientsTable     = "datos_originales"
	ConversationTable = "chat_conversations"
)

const createPatientsTable = `
CREATE TABLE IF NOT EXISTS datos_originales (
	nombre                TEXT NOT NULL,
	comunidad_autonoma    TEXT,
	fecha_de_nacimiento   TEXT,
	sexo                  TEXT,
	categoria             TEXT,
	centro_recodificado   TEXT,
	fecha_de_ingreso      TEXT,
	fecha_de_fin_contacto TEXT,
	estancia_dias         INTEGER
)`

const createStatsView = `
CREATE OR REPLACE VIEW vista_muy_interesante AS
SELECT comunidad_autonoma AS region,
       categoria AS enfermedad,
       COUNT(*) AS num_casos
FROM datos_originales
WHERE comunidad_autonoma IS NOT NULL AND categoria IS NOT NULL
GROUP BY comunidad_autonoma, categoria`

func conversationDDL(driver Driver) []string {
	if driver == DriverPostgres {
		return []string{`
CREATE TABLE IF NOT EXISTS chat_conversations (
	id                 BIGSERIAL PRIMARY KEY,
	request_id         TEXT NOT NULL,
	user_message       TEXT NOT NULL,
	assistant_response TEXT NOT NULL,
	is_urgent          BOOLEAN NOT NULL DEFAULT FALSE,
	used_data          BOOLEAN NOT NULL DEFAULT FALSE,
	provider           TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
			`CREATE INDEX IF NOT EXISTS chat_conversations_created_at_idx ON chat_conversations (created_at DESC)`,
		}
	}
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS chat_conversations_id_seq START 1`,
		`
CREATE TABLE IF NOT EXISTS chat_conversations (
	id                 BIGINT PRIMARY KEY DEFAULT nextval('chat_conversations_id_seq'),
	request_id         TEXT NOT NULL,
	user_message       TEXT NOT NULL,
	assistant_response TEXT NOT NULL,
	is_urgent          BOOLEAN NOT NULL DEFAULT FALSE,
	used_data          BOOLEAN NOT NULL DEFAULT FALSE,
	provider           TEXT NOT NULL DEFAULT '',
	created_at         TIMESTAMP NOT NULL
)`,
	}
}

// Migrate creates the tables and the statistics view when missing.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := append([]string{createPatientsTable, createStatsView}, conversationDDL(s.cfg.Driver)...)
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	s.log.Info("store: migrations applied", "driver", s.cfg.Driver)
	return nil
}

// VerifyView counts the rows of the statistics view.
func (s *Store) VerifyView(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+ViewName).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to query %s: %w", ViewName, err)
	}
	return n, nil
}
