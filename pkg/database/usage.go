package database

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UsageTotals sums a usage history
type UsageTotals struct {
	Requests    int64 `json:"requests"`
	Records     int64 `json:"records"`
	Allocations int64 `json:"allocations"`
}

// RecordUsage adds one request to today's usage row for keyID in a single
// upsert (supported by both Postgres and SQLite).
func RecordUsage(db *gorm.DB, keyID uint, records, allocations int, now time.Time) error {
	today := now.Format("2006-01-02")

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":     gorm.Expr("request_count + ?", 1),
			"total_records":     gorm.Expr("total_records + ?", records),
			"total_allocations": gorm.Expr("total_allocations + ?", allocations),
		}),
	}).Create(&APIUsage{
		KeyID:            keyID,
		Date:             today,
		RequestCount:     1,
		TotalRecords:     records,
		TotalAllocations: allocations,
	}).Error
}

// RequestsOn returns how many requests keyID has recorded on the day of now
func RequestsOn(db *gorm.DB, keyID uint, now time.Time) (int, error) {
	var usage APIUsage
	res := db.Where("key_id = ? AND date = ?", keyID, now.Format("2006-01-02")).Limit(1).Find(&usage)
	if res.Error != nil {
		return 0, res.Error
	}
	return usage.RequestCount, nil
}

// UsageHistory returns the last 30 days of usage for keyID, newest first
func UsageHistory(db *gorm.DB, keyID uint) ([]APIUsage, UsageTotals, error) {
	var usage []APIUsage
	if err := db.Where("key_id = ?", keyID).Order("date desc").Limit(30).Find(&usage).Error; err != nil {
		return nil, UsageTotals{}, err
	}

	var totals UsageTotals
	for _, u := range usage {
		totals.Requests += int64(u.RequestCount)
		totals.Records += int64(u.TotalRecords)
		totals.Allocations += int64(u.TotalAllocations)
	}
	return usage, totals, nil
}
