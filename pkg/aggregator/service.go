package aggregator

import (
	"database/sql"
	"log"
	"time"

	"github.com/bm-tools/bm257s/pkg/meterdb"
)

// roundToHourStart returns the Unix timestamp of the start of the hour for the given time
func roundToHourStart(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC).Unix()
}

// getHourEnd returns the Unix timestamp of the last second of the hour (next hour start - 1)
func getHourEnd(hourStart int64) int64 {
	return time.Unix(hourStart, 0).Add(time.Hour).Unix() - 1
}

// aggregateMeasurementsHourly summarizes raw readings for a specific hour,
// grouped by kind and unit. Overload readings (NULL value) are excluded.
func aggregateMeasurementsHourly(hourStart int64) error {
	db := meterdb.GetDB()
	hourEndMs := (getHourEnd(hourStart) * 1000) + 999

	query := `
		SELECT
			kind,
			unit,
			AVG(value) as avg_value,
			MIN(value) as min_value,
			MAX(value) as max_value,
			COUNT(*) as count
		FROM measurements
		WHERE timestamp_ms >= ? AND timestamp_ms <= ? AND value IS NOT NULL
		GROUP BY kind, unit
	`

	rows, err := db.Query(query, hourStart*1000, hourEndMs)
	if err != nil {
		return err
	}
	defer rows.Close()

	var aggregates []meterdb.AggregateMeasurementHourly
	for rows.Next() {
		agg := meterdb.AggregateMeasurementHourly{HourStart: hourStart}
		if err := rows.Scan(&agg.Kind, &agg.Unit, &agg.AvgValue, &agg.MinValue, &agg.MaxValue, &agg.SampleCount); err != nil {
			return err
		}
		aggregates = append(aggregates, agg)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// Only insert if we have data
	if len(aggregates) == 0 {
		return nil
	}

	insertQuery := `
		INSERT OR REPLACE INTO aggregate_measurements_hourly
		(hour_start, kind, unit, avg_value, min_value, max_value, sample_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	for _, agg := range aggregates {
		_, err = db.Exec(insertQuery, agg.HourStart, agg.Kind, agg.Unit, agg.AvgValue, agg.MinValue, agg.MaxValue, agg.SampleCount)
		if err != nil {
			return err
		}
	}
	return nil
}

// cleanupOldData removes raw readings older than 3 months if we have aggregated them
func cleanupOldData() error {
	db := meterdb.GetDB()

	// Calculate the cutoff timestamp (3 months ago)
	threeMonthsAgo := time.Now().UTC().AddDate(0, -3, 0)
	cutoffTimestamp := threeMonthsAgo.Unix()

	// Check if we have aggregated data up to the cutoff point
	// We check the last hourly aggregate to see if we've aggregated recent enough data
	var lastAggregateHour sql.NullInt64
	err := db.QueryRow("SELECT MAX(hour_start) FROM aggregate_measurements_hourly").Scan(&lastAggregateHour)
	if err != nil {
		if err == sql.ErrNoRows {
			// No aggregates yet, don't clean up
			return nil
		}
		return err
	}
	if !lastAggregateHour.Valid {
		return nil
	}

	// Only clean up if we have aggregated data up to the cutoff point
	if lastAggregateHour.Int64 < cutoffTimestamp {
		// We haven't aggregated enough data yet, don't clean up
		return nil
	}

	// Delete old raw readings
	_, err = db.Exec("DELETE FROM measurements WHERE timestamp_ms < ?", cutoffTimestamp*1000)
	if err != nil {
		return err
	}

	log.Printf("Cleaned up readings older than %s", threeMonthsAgo.Format(time.RFC3339))
	return nil
}

// AggregateAndCleanup performs all aggregation and cleanup tasks
// This is the main function to call for data aggregation
func AggregateAndCleanup() error {
	now := time.Now().UTC()

	// Aggregate the previous hour (current hour is still ongoing)
	previousHour := now.Add(-time.Hour)
	hourStart := roundToHourStart(previousHour)

	log.Printf("Aggregating readings for hour starting at %s", time.Unix(hourStart, 0).Format(time.RFC3339))

	if err := aggregateMeasurementsHourly(hourStart); err != nil {
		log.Printf("Error aggregating hourly readings: %v", err)
		return err
	}

	// Run cleanup
	if err := cleanupOldData(); err != nil {
		log.Printf("Error cleaning up old readings: %v", err)
		return err
	}

	log.Println("Aggregation and cleanup completed successfully")
	return nil
}
