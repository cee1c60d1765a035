// Package storage persists zones and analysis history in SQLite. The
// computation engine never touches storage; only the API layer does.
package storage

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sunfield/sunfield/internal/zone"
)

// ErrNotFound reports a missing zone or analysis.
var ErrNotFound = errors.New("not found")

// Database wraps the gorm connection.
type Database struct {
	db *gorm.DB
}

// Open opens (or creates) the SQLite database at path and migrates the
// schema.
func Open(path string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.AutoMigrate(&ZoneRecord{}, &AnalysisRecord{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

// Ping checks database reachability, for readiness probes.
func (d *Database) Ping() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// SaveZone inserts or updates a zone.
func (d *Database) SaveZone(z zone.Zone) error {
	rec := zoneRecordOf(z)
	return d.db.Save(&rec).Error
}

// GetZone returns the zone with the given ID.
func (d *Database) GetZone(id string) (zone.Zone, error) {
	var rec ZoneRecord
	result := d.db.First(&rec, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return zone.Zone{}, fmt.Errorf("zone %s: %w", id, ErrNotFound)
		}
		return zone.Zone{}, result.Error
	}
	return rec.Zone(), nil
}

// ListZones returns all zones ordered by creation time.
func (d *Database) ListZones() ([]zone.Zone, error) {
	var recs []ZoneRecord
	if err := d.db.Order("created_at").Find(&recs).Error; err != nil {
		return nil, err
	}
	zones := make([]zone.Zone, len(recs))
	for i, r := range recs {
		zones[i] = r.Zone()
	}
	return zones, nil
}

// DeleteZone removes a zone and its analysis history.
func (d *Database) DeleteZone(id string) error {
	result := d.db.Delete(&ZoneRecord{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("zone %s: %w", id, ErrNotFound)
	}
	return d.db.Delete(&AnalysisRecord{}, "zone_id = ?", id).Error
}

// SaveAnalysis appends an analysis record for a zone.
func (d *Database) SaveAnalysis(rec AnalysisRecord) error {
	return d.db.Create(&rec).Error
}

// ListAnalyses returns up to limit analysis records for a zone, newest
// first.
func (d *Database) ListAnalyses(zoneID string, limit int) ([]AnalysisRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []AnalysisRecord
	err := d.db.Where("zone_id = ?", zoneID).
		Order("created_at desc").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}
