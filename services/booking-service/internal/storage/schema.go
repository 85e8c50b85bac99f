package storage

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/md-rashed-zaman/salonbook/libs/db"
)

//go:embed schema.sql
var schemaSQL string

// ApplySchema creates the booking tables if they do not exist. Every statement is idempotent.
func ApplySchema(ctx context.Context, pool *db.Pool) error {
	for _, stmt := range strings.Split(schemaSQL, ";\n") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
