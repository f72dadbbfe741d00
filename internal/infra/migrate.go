package infra

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	statements := splitStatements(schemaSQL)
	logger.Info().Int("statements", len(statements)).Msg("applying schema")
	for i, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// splitStatements cuts a script at semicolons that end a line, leaving
// dollar-quoted bodies intact.
func splitStatements(script string) []string {
	var (
		out     []string
		current strings.Builder
		quoted  bool
	)
	for _, line := range strings.Split(script, "\n") {
		if strings.Count(line, "$$")%2 == 1 {
			quoted = !quoted
		}
		current.WriteString(line)
		current.WriteByte('\n')
		if !quoted && strings.HasSuffix(strings.TrimSpace(line), ";") {
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				out = append(out, stmt)
			}
			current.Reset()
		}
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		out = append(out, stmt)
	}
	return out
}
