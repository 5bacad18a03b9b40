package models

import (
	"time"

	"github.com/metroroute/pkg/metro"
)

// StationRecord is one station as it appears in a topology source.
type StationRecord struct {
	ID   string
	Name string
	Line string
	Lat  *float64
	Lon  *float64
}

// Coordinate returns the record's position when both components are present.
func (s *StationRecord) Coordinate() *metro.Coordinate {
	if s.Lat == nil || s.Lon == nil {
		return nil
	}
	return &metro.Coordinate{Lat: *s.Lat, Lon: *s.Lon}
}

// ConnectionRecord is an undirected timed link between two named stations.
type ConnectionRecord struct {
	From    string
	To      string
	Minutes int
}

// SourceMetadata describes a remote topology source at one point in time.
type SourceMetadata struct {
	URL          string
	LastModified time.Time
	ETag         string
	Format       string
}

type VersionInfo struct {
	VersionID    int
	VersionName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	IsActive     bool
	SourceURL    string
	ETag         string
	Description  string
}
