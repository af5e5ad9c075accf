// Package domain defines the persistence models for cluster definitions and
// cached clustering results. These types are mapped with GORM and form the
// durable data layer of the earthquake cluster backend.
package domain

import "time"

// ClusterDefinition is the durable identity of a recurring significant
// cluster. The row is created the first time a cluster with a given
// StableKey is observed as significant and updated in place (with Version
// incremented) on every later observation; it is never deleted by this
// subsystem.
//
// Fields:
//   - ID: opaque UUID primary key, generated once at creation.
//   - StableKey: coarse re-derivable identity used for upsert lookup.
//   - Slug: public URL identifier; fixed at creation, never regenerated.
//   - StrongestEventID / EventIDs: the mainshock and the full ordered
//     member list as of the latest observation.
//   - Version: starts at 1, incremented on every update (last-write-wins
//     across concurrent writers of the same StableKey).
type ClusterDefinition struct {
	ID               string    `json:"id"                 gorm:"type:TEXT NOT NULL;primaryKey"`
	StableKey        string    `json:"stable_key"         gorm:"type:TEXT NOT NULL;uniqueIndex:ux_definitions_stable_key"`
	Slug             string    `json:"slug"               gorm:"type:TEXT NOT NULL;index"`
	Title            string    `json:"title"              gorm:"type:TEXT NOT NULL"`
	Description      string    `json:"description"        gorm:"type:TEXT NOT NULL"`
	StrongestEventID string    `json:"strongest_event_id" gorm:"type:TEXT NOT NULL"`
	EventIDs         string    `json:"event_ids"          gorm:"type:TEXT NOT NULL"` // JSON-encoded ordered list
	EventCount       int       `json:"event_count"        gorm:"not null"`
	MaxMagnitude     float64   `json:"max_magnitude"      gorm:"not null"`
	MinMagnitude     float64   `json:"min_magnitude"      gorm:"not null"`
	MeanMagnitude    float64   `json:"mean_magnitude"     gorm:"not null"`
	StartTime        time.Time `json:"start_time"         gorm:"type:DATETIME NOT NULL"`
	EndTime          time.Time `json:"end_time"           gorm:"type:DATETIME NOT NULL"`
	DurationHours    float64   `json:"duration_hours"     gorm:"not null"`
	LocationName     string    `json:"location_name"      gorm:"type:TEXT NOT NULL"`
	CentroidLat      float64   `json:"centroid_lat"       gorm:"not null"`
	CentroidLon      float64   `json:"centroid_lon"       gorm:"not null"`
	DepthRange       string    `json:"depth_range"        gorm:"type:TEXT NOT NULL"`
	Significance     float64   `json:"significance"       gorm:"not null"`
	Version          int       `json:"version"            gorm:"not null;default:1"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName returns the database table name for ClusterDefinition.
func (ClusterDefinition) TableName() string { return "cluster_definitions" }

// ClusterCache is one cached clustering result, keyed by a fingerprint of
// the request parameters. Rows are superseded (not versioned) on rewrite;
// they are considered valid only within the freshness window enforced by the
// service layer, and stale rows are simply ignored.
type ClusterCache struct {
	CacheKey      string    `json:"cache_key"      gorm:"type:TEXT NOT NULL;primaryKey"`
	Payload       string    `json:"payload"        gorm:"type:TEXT NOT NULL"` // JSON-encoded cluster array
	RequestParams string    `json:"request_params" gorm:"type:TEXT NOT NULL"`
	CreatedAt     time.Time `json:"created_at"     gorm:"type:DATETIME NOT NULL;index"`
}

// TableName returns the database table name for ClusterCache.
func (ClusterCache) TableName() string { return "cluster_cache" }
