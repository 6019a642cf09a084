package config

type MeterCollectorConfig struct {
	MeterAPIHost string `toml:"meter_api_host"`
	TLSEnabled   bool   `toml:"tls_enabled"`
}

type MeterAPIConfig struct {
	SerialDevice  string `toml:"serial_device"`
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
	// How long decoded measurements stay available for /average and
	// read_all. 0 keeps only the latest reading.
	WindowSeconds float64 `toml:"window_seconds"`
	// Per-read timeout on the serial port.
	ReadTimeoutMs int `toml:"read_timeout_ms"`
	// Optional raw packet capture log; empty disables capturing.
	CaptureLog string `toml:"capture_log"`
}
