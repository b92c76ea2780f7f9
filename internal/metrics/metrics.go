package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	roleReady = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "warden",
		Name:      "role_ready",
		Help:      "Readiness of supervised roles (1=ready, 0=not ready).",
	}, []string{"role"})

	roleState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "warden",
		Name:      "role_state",
		Help:      "Current lifecycle state of each role (1 on the active state).",
	}, []string{"role", "state"})

	launches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "launches_total",
		Help:      "Launch requests per role by outcome.",
	}, []string{"role", "result"})

	windowAttempts = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "warden",
		Name:      "window_poll_attempts",
		Help:      "Directory queries needed before a role's window appeared or polling gave up.",
		Buckets:   []float64{1, 2, 5, 10, 30, 60, 120},
	}, []string{"role"})

	trackedWindows = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "warden",
		Name:      "tracked_windows",
		Help:      "Number of windows tracked per role.",
	}, []string{"role"})

	terminations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "terminations_total",
		Help:      "Terminations per role by outcome.",
	}, []string{"role", "result"})

	droppedEvents = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "warden",
		Name:      "dropped_events_total",
		Help:      "Supervisor events discarded because no consumer kept up.",
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "warden",
		Name:      "build_info",
		Help:      "Build metadata for the running warden binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once

	stateMu    sync.Mutex
	lastStates = map[string]string{}
)

func init() {
	registry.MustRegister(roleReady, roleState, launches, windowAttempts, trackedWindows, terminations, droppedEvents, buildInfo)
}

// Registry returns the Prometheus registry containing all warden metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SetRoleState records the lifecycle state of a role. The previous state
// series for the role is cleared so exactly one state reads 1.
func SetRoleState(role, state string) {
	if role == "" || state == "" {
		return
	}
	stateMu.Lock()
	defer stateMu.Unlock()
	if prev, ok := lastStates[role]; ok && prev != state {
		roleState.DeleteLabelValues(role, prev)
	}
	lastStates[role] = state
	roleState.WithLabelValues(role, state).Set(1)
}

// SetRoleReady records the readiness of a role.
func SetRoleReady(role string, ready bool) {
	if role == "" {
		return
	}
	value := 0.0
	if ready {
		value = 1.0
	}
	roleReady.WithLabelValues(role).Set(value)
}

// ObserveLaunch counts a launch request outcome.
func ObserveLaunch(role string, succeeded bool) {
	if role == "" {
		return
	}
	launches.WithLabelValues(role, outcome(succeeded)).Inc()
}

// ObserveWindowAttempts records how many directory queries a window poll made.
func ObserveWindowAttempts(role string, attempts int) {
	label := role
	if label == "" {
		label = "unknown"
	}
	windowAttempts.WithLabelValues(label).Observe(float64(attempts))
}

// SetTrackedWindows records how many windows a role currently tracks.
func SetTrackedWindows(role string, n int) {
	if role == "" {
		return
	}
	trackedWindows.WithLabelValues(role).Set(float64(n))
}

// ObserveTermination counts a termination outcome.
func ObserveTermination(role string, complete bool) {
	if role == "" {
		return
	}
	result := "complete"
	if !complete {
		result = "incomplete"
	}
	terminations.WithLabelValues(role, result).Inc()
}

// IncDroppedEvents counts a discarded supervisor event.
func IncDroppedEvents() {
	droppedEvents.Inc()
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}

// ResetRole clears the per-role series once a role is cleared.
func ResetRole(role string) {
	if role == "" {
		return
	}
	roleReady.DeleteLabelValues(role)
	trackedWindows.DeleteLabelValues(role)
	windowAttempts.DeleteLabelValues(role)
}

func outcome(ok bool) string {
	if ok {
		return "accepted"
	}
	return "rejected"
}
