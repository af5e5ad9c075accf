package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seismolab/go-quake-backend/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Release the file handle before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func sampleDefinition(key string) *domain.ClusterDefinition {
	return &domain.ClusterDefinition{
		StableKey:        key,
		Slug:             "3-quakes-near-ridgecrest-ca-m4.7-81000-35.6--117.6",
		Title:            "3 Earthquakes Near Ridgecrest, CA (max M4.7)",
		Description:      "A sequence of 3 earthquakes near Ridgecrest, CA.",
		StrongestEventID: "e2",
		EventIDs:         `["e2","e1","e3"]`,
		EventCount:       3,
		MaxMagnitude:     4.7,
		MinMagnitude:     2.4,
		MeanMagnitude:    3.4,
		StartTime:        time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC),
		EndTime:          time.Date(2025, 6, 1, 5, 0, 0, 0, time.UTC),
		DurationHours:    2,
		LocationName:     "Ridgecrest, CA",
		CentroidLat:      35.62,
		CentroidLon:      -117.61,
		DepthRange:       "5.0-9.5km",
		Significance:     2.24,
	}
}

func TestCreateDefinition_SetsIDVersionAndTimestamps(t *testing.T) {
	db := newRepoDB(t, &domain.ClusterDefinition{})

	def, err := CreateDefinition(context.Background(), db, sampleDefinition("v1_ridgecrest-ca_81000_35.6--117.6"))
	if err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}
	if def.ID == "" {
		t.Fatal("expected generated primary key")
	}
	if def.Version != 1 {
		t.Fatalf("Version = %d; want 1", def.Version)
	}
	if def.CreatedAt.IsZero() || def.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", def)
	}
}

func TestGetDefinitionByStableKey(t *testing.T) {
	db := newRepoDB(t, &domain.ClusterDefinition{})
	ctx := context.Background()

	if _, err := GetDefinitionByStableKey(ctx, db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	created, err := CreateDefinition(ctx, db, sampleDefinition("v1_key_1_2"))
	if err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}
	got, err := GetDefinitionByStableKey(ctx, db, "v1_key_1_2")
	if err != nil {
		t.Fatalf("GetDefinitionByStableKey: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("fetched wrong row: %q vs %q", got.ID, created.ID)
	}
}

func TestUpdateDefinition_IncrementsVersionAndKeepsSlug(t *testing.T) {
	db := newRepoDB(t, &domain.ClusterDefinition{})
	ctx := context.Background()

	created, err := CreateDefinition(ctx, db, sampleDefinition("v1_key_1_2"))
	if err != nil {
		t.Fatalf("CreateDefinition: %v", err)
	}
	originalSlug := created.Slug

	created.Title = "4 Earthquakes Near Ridgecrest, CA (max M4.9)"
	created.EventCount = 4
	created.MaxMagnitude = 4.9
	created.Slug = "tampered-slug" // must be ignored by the update
	if err := UpdateDefinition(ctx, db, created); err != nil {
		t.Fatalf("UpdateDefinition: %v", err)
	}

	got, err := GetDefinitionByStableKey(ctx, db, "v1_key_1_2")
	if err != nil {
		t.Fatalf("GetDefinitionByStableKey: %v", err)
	}
	if got.Version != 2 {
		t.Fatalf("Version = %d; want 2", got.Version)
	}
	if got.EventCount != 4 || got.MaxMagnitude != 4.9 {
		t.Fatalf("mutable fields not updated: %+v", got)
	}
	if got.Slug != originalSlug {
		t.Fatalf("slug must never change on update: %q -> %q", originalSlug, got.Slug)
	}

	// A second observation bumps the version again.
	if err := UpdateDefinition(ctx, db, created); err != nil {
		t.Fatalf("UpdateDefinition (2nd): %v", err)
	}
	got, _ = GetDefinitionByStableKey(ctx, db, "v1_key_1_2")
	if got.Version != 3 {
		t.Fatalf("Version = %d; want 3", got.Version)
	}
}

func TestUpdateDefinition_MissingRowIsNotFound(t *testing.T) {
	db := newRepoDB(t, &domain.ClusterDefinition{})
	def := sampleDefinition("v1_key_1_2")
	def.ID = "does-not-exist"
	if err := UpdateDefinition(context.Background(), db, def); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStableKeyUniqueConstraint(t *testing.T) {
	db := newRepoDB(t, &domain.ClusterDefinition{})
	ctx := context.Background()

	if _, err := CreateDefinition(ctx, db, sampleDefinition("v1_dup_1_2")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := CreateDefinition(ctx, db, sampleDefinition("v1_dup_1_2")); err == nil {
		t.Fatal("expected unique constraint violation for duplicate stable key")
	}
}

func TestListDefinitionsPage_OrderAndPaging(t *testing.T) {
	db := newRepoDB(t, &domain.ClusterDefinition{})
	ctx := context.Background()

	for i, sig := range []float64{1.0, 3.0, 2.0} {
		def := sampleDefinition(fmt.Sprintf("v1_key_%d_x", i))
		def.Significance = sig
		if _, err := CreateDefinition(ctx, db, def); err != nil {
			t.Fatalf("CreateDefinition %d: %v", i, err)
		}
	}

	total, err := CountDefinitions(ctx, db)
	if err != nil || total != 3 {
		t.Fatalf("CountDefinitions = %d, %v; want 3", total, err)
	}

	page, err := ListDefinitionsPage(ctx, db, 0, 2)
	if err != nil {
		t.Fatalf("ListDefinitionsPage: %v", err)
	}
	if len(page) != 2 || page[0].Significance != 3.0 || page[1].Significance != 2.0 {
		t.Fatalf("expected top-2 by significance desc, got %+v", page)
	}

	rest, err := ListDefinitionsPage(ctx, db, 2, 2)
	if err != nil || len(rest) != 1 {
		t.Fatalf("expected 1 remaining row, got %d (%v)", len(rest), err)
	}
}
