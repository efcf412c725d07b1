package telemetry

import (
	"fmt"
	"runtime"

	"github.com/grafana/pyroscope-go"
)

// ProfilingConfig configures Pyroscope continuous profiling for the mount
// process.
type ProfilingConfig struct {
	// Enabled turns the profiler on.
	Enabled bool

	// ServiceName is the application name shown in Pyroscope.
	ServiceName string

	// ServiceVersion is attached as a tag so profiles from different builds
	// can be told apart.
	ServiceVersion string

	// Endpoint is the Pyroscope server URL, e.g. "http://localhost:4040".
	Endpoint string

	// ProfileTypes selects what to collect; see profileTypeNames for the
	// accepted values. Empty means whatever pyroscope collects by default.
	ProfileTypes []string
}

// profileTypeNames maps config strings to pyroscope profile types.
var profileTypeNames = map[string]pyroscope.ProfileType{
	"cpu":            pyroscope.ProfileCPU,
	"alloc_objects":  pyroscope.ProfileAllocObjects,
	"alloc_space":    pyroscope.ProfileAllocSpace,
	"inuse_objects":  pyroscope.ProfileInuseObjects,
	"inuse_space":    pyroscope.ProfileInuseSpace,
	"goroutines":     pyroscope.ProfileGoroutines,
	"mutex_count":    pyroscope.ProfileMutexCount,
	"mutex_duration": pyroscope.ProfileMutexDuration,
	"block_count":    pyroscope.ProfileBlockCount,
	"block_duration": pyroscope.ProfileBlockDuration,
}

var (
	profiler         *pyroscope.Profiler
	profilingEnabled bool
)

// InitProfiling starts the Pyroscope profiler. The returned shutdown function
// stops it; when profiling is disabled both are no-ops.
func InitProfiling(cfg ProfilingConfig) (shutdown func() error, err error) {
	if !cfg.Enabled {
		profilingEnabled = false
		return func() error { return nil }, nil
	}

	types := make([]pyroscope.ProfileType, 0, len(cfg.ProfileTypes))
	for _, name := range cfg.ProfileTypes {
		pt, ok := profileTypeNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown profile type: %s", name)
		}
		types = append(types, pt)

		// Mutex and block profiles need runtime sampling switched on.
		switch name {
		case "mutex_count", "mutex_duration":
			runtime.SetMutexProfileFraction(5)
		case "block_count", "block_duration":
			runtime.SetBlockProfileRate(5)
		}
	}

	profiler, err = pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags: map[string]string{
			"version": cfg.ServiceVersion,
		},
		ProfileTypes: types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	profilingEnabled = true

	return func() error {
		if profiler != nil {
			return profiler.Stop()
		}
		return nil
	}, nil
}

// IsProfilingEnabled reports whether the profiler is running.
func IsProfilingEnabled() bool {
	return profilingEnabled
}
