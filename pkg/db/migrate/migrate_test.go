package migrate

import (
	"context"
	"testing"

	"github.com/514-labs/cla-bot-sub001/pkg/db/internal/test"
)

func TestMigrate(t *testing.T) {
	ctx := context.TODO()
	dbx, err := test.OpenSqlite(ctx, t)
	if err != nil {
		t.Fatal(err)
	}
	if err := Migrate(ctx, dbx); err != nil {
		t.Errorf("Migrate() => %v, want nil error", err)
	}
	// Running again is a no-op.
	if err := Migrate(ctx, dbx); err != nil {
		t.Errorf("Migrate() second run => %v, want nil error", err)
	}
}

func TestMigrateRollback(t *testing.T) {
	ctx := context.TODO()
	dbx, err := test.OpenSqlite(ctx, t)
	if err != nil {
		t.Fatal(err)
	}
	if err := Migrate(ctx, dbx); err != nil {
		t.Fatal(err)
	}
	if err := Rollback(ctx, dbx); err != nil {
		t.Errorf("Rollback() => %v, want nil error", err)
	}
}
