// Meter API is responsible for reading the BM257s serial stream and
// broadcasting the decoded readings.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bm-tools/bm257s/pkg/capture"
	"github.com/bm-tools/bm257s/pkg/config"
	"github.com/bm-tools/bm257s/pkg/measurement"
	"github.com/bm-tools/bm257s/pkg/meter"
	"github.com/bm-tools/bm257s/pkg/stream"
)

var meterReader *meter.Reader

var hub = stream.NewHub()

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

func main() {
	// Load config
	if err := config.LoadMeterAPIConfig(); err != nil {
		log.Fatalf("Failed to load meter API config: %v", err)
	}
	cfg := config.ActiveMeterAPIConfig

	// Optional raw packet capture log
	var captureWriter *capture.Writer
	if cfg.CaptureLog != "" {
		var err error
		captureWriter, err = capture.NewWriter(cfg.CaptureLog)
		if err != nil {
			log.Fatalf("Failed to open capture log: %v", err)
		}
		defer captureWriter.Close()
	}

	// Open the meter and start decoding
	var err error
	meterReader, err = meter.Open(cfg.SerialDevice, meter.Config{
		Window:      time.Duration(cfg.WindowSeconds * float64(time.Second)),
		ReadTimeout: time.Duration(cfg.ReadTimeoutMs) * time.Millisecond,
		Capture:     captureWriter,
	})
	if err != nil {
		log.Fatalf("Failed to open meter: %v", err)
	}
	if err := meterReader.Start(); err != nil {
		log.Fatalf("Failed to start meter reader: %v", err)
	}
	defer meterReader.Stop()

	go broadcastReadings()

	// Setup HTTP handlers
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		response := map[string]string{
			"message": "BM257s Meter API",
			"status":  "running",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})

	http.HandleFunc("/latest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		m, ok := meterReader.Latest()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "No readings available yet",
			})
			return
		}

		json.NewEncoder(w).Encode(stream.FromMeasurement(m))
	})

	http.HandleFunc("/average", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		avg, err := measurement.Average(meterReader.Snapshot())
		if err != nil {
			// Mode switch mid-window; readings are not comparable.
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]string{
				"error": err.Error(),
			})
			return
		}
		if len(avg.Values) == 0 {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "No valid readings in window",
			})
			return
		}

		json.NewEncoder(w).Encode(map[string]any{
			"average":      stream.FromMeasurement(avg.Measurement),
			"sample_count": len(avg.Values),
		})
	})

	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}

		hub.Add(conn)

		// Send current reading immediately if available
		if m, ok := meterReader.Latest(); ok {
			conn.WriteMessage(websocket.TextMessage, stream.FromMeasurement(m).ToJsonBytes())
		}

		// Keep connection alive
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				hub.Remove(conn)
				break
			}
		}
	})

	listener := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort)

	log.Printf("Starting BM257s Meter API on %s", listener)
	log.Fatal(http.ListenAndServe(listener, nil))
}

// broadcastReadings forwards each new decoded measurement to the websocket
// clients until the reader stops.
func broadcastReadings() {
	for meterReader.Wait(0) {
		if m, ok := meterReader.Read(); ok {
			hub.Broadcast(stream.FromMeasurement(m))
		}
	}
	if err := meterReader.Err(); err != nil {
		log.Fatalf("Meter reader stopped: %v", err)
	}
}
