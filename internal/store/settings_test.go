package store

import (
	"context"
	"testing"

	"github.com/erazemk/knjiznica/internal/db"
)

func TestGetJWTSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	secret2, err := GetJWTSecret(ctx, database)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}
}

func TestSetting_Upsert(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	v, err := GetSetting(ctx, database, "library_name")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Fatalf("expected empty value, got %q", v)
	}

	if err := SetSetting(ctx, database, "library_name", "Mestna"); err != nil {
		t.Fatal(err)
	}
	if err := SetSetting(ctx, database, "library_name", "Osrednja"); err != nil {
		t.Fatal(err)
	}

	v, err = GetSetting(ctx, database, "library_name")
	if err != nil {
		t.Fatal(err)
	}
	if v != "Osrednja" {
		t.Errorf("expected 'Osrednja', got %q", v)
	}
}
