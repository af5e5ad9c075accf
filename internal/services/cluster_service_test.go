package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/seismolab/go-quake-backend/internal/cluster"
	"github.com/seismolab/go-quake-backend/internal/domain"
	"github.com/seismolab/go-quake-backend/internal/observability"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := db.AutoMigrate(&domain.ClusterDefinition{}, &domain.ClusterCache{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newTestMetrics(t *testing.T) *observability.Metrics {
	t.Helper()
	return observability.NewMetrics(prometheus.NewRegistry())
}

func strp(s string) *string { return &s }

func f64p(f float64) *float64 { return &f }

func i64p(i int64) *int64 { return &i }

// rawSwarm returns three events within ~11km plus one far outlier.
func rawSwarm() []cluster.RawEvent {
	mk := func(id string, mag, lat, lon float64) cluster.RawEvent {
		return cluster.RawEvent{
			ID:         strp(id),
			Magnitude:  f64p(mag),
			TimeMillis: i64p(1748736000000),
			Place:      strp("10km SW of Ridgecrest, CA"),
			Latitude:   f64p(lat),
			Longitude:  f64p(lon),
		}
	}
	return []cluster.RawEvent{
		mk("q1", 4.7, 35.60, -117.60),
		mk("q2", 2.9, 35.65, -117.55),
		mk("q3", 3.1, 35.62, -117.65),
		mk("far", 5.0, -20.00, 140.00),
	}
}

func TestGetOrCompute_ComputesOnMiss(t *testing.T) {
	db := newServiceDB(t)
	m := newTestMetrics(t)
	s := NewClusterService(db, m, time.Hour, 100)

	run, hit, err := s.GetOrCompute(context.Background(), rawSwarm(), 25, 3)
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if hit {
		t.Fatal("first call should be a miss")
	}
	if len(run.Clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(run.Clusters))
	}
	if run.Strategy != "direct" {
		t.Fatalf("expected direct strategy for 4 events, got %q", run.Strategy)
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); got != 1 {
		t.Fatalf("miss counter = %v; want 1", got)
	}
	if got := testutil.ToFloat64(m.ClusteringRuns.WithLabelValues("direct")); got != 1 {
		t.Fatalf("run counter = %v; want 1", got)
	}
}

func TestGetOrCompute_ServesFreshCacheEntry(t *testing.T) {
	db := newServiceDB(t)
	m := newTestMetrics(t)
	s := NewClusterService(db, m, time.Hour, 100)
	s.Clock = clockwork.NewFakeClock()

	first, hit, err := s.GetOrCompute(context.Background(), rawSwarm(), 25, 3)
	if err != nil || hit {
		t.Fatalf("warmup: hit=%v err=%v", hit, err)
	}

	second, hit, err := s.GetOrCompute(context.Background(), rawSwarm(), 25, 3)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if !hit {
		t.Fatal("second call should be a cache hit")
	}
	if len(second.Clusters) != len(first.Clusters) {
		t.Fatalf("cached clusters = %d; want %d", len(second.Clusters), len(first.Clusters))
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")); got != 1 {
		t.Fatalf("hit counter = %v; want 1", got)
	}
}

func TestGetOrCompute_ExpiredEntryRecomputes(t *testing.T) {
	db := newServiceDB(t)
	m := newTestMetrics(t)
	fc := clockwork.NewFakeClock()
	s := NewClusterService(db, m, time.Hour, 100)
	s.Clock = fc

	if _, _, err := s.GetOrCompute(context.Background(), rawSwarm(), 25, 3); err != nil {
		t.Fatalf("warmup: %v", err)
	}

	fc.Advance(2 * time.Hour)

	_, hit, err := s.GetOrCompute(context.Background(), rawSwarm(), 25, 3)
	if err != nil {
		t.Fatalf("post-expiry call: %v", err)
	}
	if hit {
		t.Fatal("expired entry must not be served")
	}
	if got := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); got != 2 {
		t.Fatalf("miss counter = %v; want 2", got)
	}
}

func TestGetOrCompute_DifferentParamsMissCache(t *testing.T) {
	db := newServiceDB(t)
	s := NewClusterService(db, newTestMetrics(t), time.Hour, 100)

	if _, _, err := s.GetOrCompute(context.Background(), rawSwarm(), 25, 3); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	_, hit, err := s.GetOrCompute(context.Background(), rawSwarm(), 50, 3)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if hit {
		t.Fatal("different max distance must not share a cache entry")
	}
}

func TestGetOrCompute_ReportsSkippedEvents(t *testing.T) {
	db := newServiceDB(t)
	m := newTestMetrics(t)
	s := NewClusterService(db, m, time.Hour, 100)

	raw := append(rawSwarm(), cluster.RawEvent{Magnitude: f64p(1.0)}) // no id
	run, _, err := s.GetOrCompute(context.Background(), raw, 25, 3)
	if err != nil {
		t.Fatalf("GetOrCompute: %v", err)
	}
	if run.SkippedEvents != 1 {
		t.Fatalf("SkippedEvents = %d; want 1", run.SkippedEvents)
	}
	if got := testutil.ToFloat64(m.EventsSkipped); got != 1 {
		t.Fatalf("skipped counter = %v; want 1", got)
	}
}

func TestGetOrCompute_ValidationErrors(t *testing.T) {
	db := newServiceDB(t)
	s := NewClusterService(db, nil, time.Hour, 100)
	ctx := context.Background()

	if _, _, err := s.GetOrCompute(ctx, rawSwarm(), 0, 3); !errors.Is(err, ErrInvalidThresholds) {
		t.Fatalf("zero distance: got %v", err)
	}
	if _, _, err := s.GetOrCompute(ctx, rawSwarm(), 25, 0); !errors.Is(err, ErrInvalidThresholds) {
		t.Fatalf("zero min members: got %v", err)
	}
	if _, _, err := s.GetOrCompute(ctx, nil, 25, 3); !errors.Is(err, ErrNoEvents) {
		t.Fatalf("no events: got %v", err)
	}
	onlyInvalid := []cluster.RawEvent{{Magnitude: f64p(1.0)}}
	if _, _, err := s.GetOrCompute(ctx, onlyInvalid, 25, 3); !errors.Is(err, ErrNoEvents) {
		t.Fatalf("only invalid events: got %v", err)
	}
}

func TestGetOrCompute_CorruptCachePayloadRecomputes(t *testing.T) {
	db := newServiceDB(t)
	m := newTestMetrics(t)
	s := NewClusterService(db, m, time.Hour, 100)

	if _, _, err := s.GetOrCompute(context.Background(), rawSwarm(), 25, 3); err != nil {
		t.Fatalf("warmup: %v", err)
	}
	if err := db.Model(&domain.ClusterCache{}).
		Where("1 = 1").
		Update("payload", "{not json").Error; err != nil {
		t.Fatalf("corrupt payload: %v", err)
	}

	run, hit, err := s.GetOrCompute(context.Background(), rawSwarm(), 25, 3)
	if err != nil {
		t.Fatalf("post-corruption call: %v", err)
	}
	if hit {
		t.Fatal("corrupt entry must not be served as a hit")
	}
	if len(run.Clusters) != 1 {
		t.Fatalf("expected recomputed clusters, got %d", len(run.Clusters))
	}
	if got := testutil.ToFloat64(m.CacheErrors.WithLabelValues("decode")); got != 1 {
		t.Fatalf("decode error counter = %v; want 1", got)
	}
}
