package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	// registry is private so the text-file export only carries dupesweep series;
	// node_exporter rejects files that redefine its own go_* and process_* metrics.
	registry = prometheus.NewRegistry()
)

// Init registers all subsystem metrics with the dupesweep registry
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		registerScanMetrics()
		registerDeletionMetrics()
		registerRunMetrics()

		// Present before the first run finishes
		LastRunTimestamp.Set(0)
		LastRunState.WithLabelValues("NONE").Set(0)
	})
}

// Gatherer exposes the dupesweep registry
func Gatherer() prometheus.Gatherer {
	return registry
}

// WriteTextfile writes every registered metric to path in the Prometheus text
// format, for pickup by node_exporter's textfile collector
func WriteTextfile(path string) error {
	Init()
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory %s: %w", dir, err)
		}
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
