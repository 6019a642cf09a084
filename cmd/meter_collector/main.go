// Responsible for storing the readings collected from the multimeter.
// Depends on the meter API being online.
package main

import (
	"log"
	"time"

	"github.com/bm-tools/bm257s/pkg/aggregator"
	"github.com/bm-tools/bm257s/pkg/config"
	"github.com/bm-tools/bm257s/pkg/measurement"
	"github.com/bm-tools/bm257s/pkg/meterdb"
	"github.com/bm-tools/bm257s/pkg/stream"
)

func main() {
	// Load config
	if err := config.LoadMeterCollectorConfig(); err != nil {
		log.Fatalf("Failed to load meter collector config: %v", err)
	}
	cfg := config.ActiveMeterCollectorConfig

	// Initialize database
	meterdb.InitializeDatabase()

	// Summarize and clean up on the hour
	go runAggregationSchedule()

	// Subscribe to websocket with revive
	stream.StartListener(cfg.MeterAPIHost, cfg.TLSEnabled, handleMeasurement)
}

// Handle a decoded measurement from the meter API
func handleMeasurement(m measurement.Measurement) {
	if m.Kind == measurement.Unsupported {
		return
	}
	if err := meterdb.InsertMeasurement(meterdb.MeasurementToDbRow(m)); err != nil {
		log.Printf("Failed to store measurement: %v", err)
	}
}

func runAggregationSchedule() {
	// Catch up for the previous hour on startup
	if err := aggregator.AggregateAndCleanup(); err != nil {
		log.Printf("Aggregation failed: %v", err)
	}

	for {
		now := time.Now().UTC()
		nextHour := now.Truncate(time.Hour).Add(time.Hour)
		time.Sleep(time.Until(nextHour.Add(time.Minute)))

		if err := aggregator.AggregateAndCleanup(); err != nil {
			log.Printf("Aggregation failed: %v", err)
		}
	}
}
