package storage

import (
	"time"

	"github.com/sunfield/sunfield/internal/geo"
	"github.com/sunfield/sunfield/internal/zone"
)

// ZoneRecord is the persisted form of a planting zone.
type ZoneRecord struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	North       float64
	South       float64
	East        float64
	West        float64
	AvgSunHours float64
	Category    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AnalysisRecord is one stored daily shade analysis for a zone, keeping the
// obstacle-set hash so callers can tell which configuration produced it.
type AnalysisRecord struct {
	ID                  uint   `gorm:"primaryKey;autoIncrement"`
	ZoneID              string `gorm:"index"`
	Date                string // YYYY-MM-DD
	TheoreticalSunHours float64
	EffectiveSunHours   float64
	PercentBlocked      float64
	ObstacleHash        string // hex FNV-64 of the obstacle set
	CreatedAt           time.Time
}

// zoneRecordOf converts a domain zone to its persisted form.
func zoneRecordOf(z zone.Zone) ZoneRecord {
	return ZoneRecord{
		ID:          z.ID,
		Name:        z.Name,
		North:       z.Bounds.North,
		South:       z.Bounds.South,
		East:        z.Bounds.East,
		West:        z.Bounds.West,
		AvgSunHours: z.AvgSunHours,
		Category:    string(z.Category),
	}
}

// Zone converts the record back to its domain form.
func (r ZoneRecord) Zone() zone.Zone {
	return zone.Zone{
		ID:          r.ID,
		Name:        r.Name,
		Bounds:      geo.Bounds{North: r.North, South: r.South, East: r.East, West: r.West},
		AvgSunHours: r.AvgSunHours,
		Category:    zone.LightCategory(r.Category),
	}
}
