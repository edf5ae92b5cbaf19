package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Health and readiness states
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// DefaultCriticalComponents must be healthy for the node to report ready
var DefaultCriticalComponents = []string{"store", "reconciler"}

// HealthStatus is the body of the health and readiness endpoints
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

type component struct {
	healthy bool
	message string
}

// componentRegistry holds the last reported state of each component
type componentRegistry struct {
	mu         sync.RWMutex
	components map[string]component
	critical   []string
	version    string
	started    time.Time
}

func newComponentRegistry() *componentRegistry {
	return &componentRegistry{
		components: make(map[string]component),
		started:    time.Now(),
	}
}

var components = newComponentRegistry()

// SetVersion sets the version reported by the health endpoints
func SetVersion(version string) {
	components.mu.Lock()
	defer components.mu.Unlock()
	components.version = version
}

// RegisterComponent records the state of a component, adding it if needed
func RegisterComponent(name string, healthy bool, message string) {
	components.mu.Lock()
	defer components.mu.Unlock()
	components.components[name] = component{healthy: healthy, message: message}
}

// UpdateComponent records a new state for a component
func UpdateComponent(name string, healthy bool, message string) {
	RegisterComponent(name, healthy, message)
}

// SetCriticalComponents replaces the components readiness waits for. An
// unhealthy critical component makes the node unhealthy; any other
// unhealthy component only degrades it.
func SetCriticalComponents(names ...string) {
	components.mu.Lock()
	defer components.mu.Unlock()
	components.critical = append([]string(nil), names...)
}

// criticalLocked returns the critical component names; mu must be held
func (r *componentRegistry) criticalLocked() []string {
	if r.critical == nil {
		return DefaultCriticalComponents
	}
	return r.critical
}

func (r *componentRegistry) statusLocked(status, message string, states map[string]string) HealthStatus {
	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: states,
		Message:    message,
		Version:    r.version,
		Uptime:     time.Since(r.started).Round(time.Second).String(),
	}
}

// GetHealth reports every registered component
func GetHealth() HealthStatus {
	components.mu.RLock()
	defer components.mu.RUnlock()

	critical := make(map[string]bool)
	for _, name := range components.criticalLocked() {
		critical[name] = true
	}

	status := StatusHealthy
	states := make(map[string]string, len(components.components))
	var failing []string
	for name, c := range components.components {
		if c.healthy {
			states[name] = StatusHealthy
			continue
		}
		states[name] = StatusUnhealthy + ": " + c.message
		failing = append(failing, name)
		if critical[name] {
			status = StatusUnhealthy
		} else if status == StatusHealthy {
			status = StatusDegraded
		}
	}

	message := ""
	if len(failing) > 0 {
		sort.Strings(failing)
		message = "failing: " + strings.Join(failing, ", ")
	}
	return components.statusLocked(status, message, states)
}

// GetReadiness reports whether every critical component is registered and
// healthy
func GetReadiness() HealthStatus {
	components.mu.RLock()
	defer components.mu.RUnlock()

	status := StatusReady
	message := ""
	states := make(map[string]string)
	for _, name := range components.criticalLocked() {
		c, ok := components.components[name]
		switch {
		case !ok:
			states[name] = "not registered"
		case !c.healthy:
			states[name] = "not ready: " + c.message
		default:
			states[name] = StatusReady
			continue
		}
		if status == StatusReady {
			message = "waiting for " + name
		}
		status = StatusNotReady
	}
	return components.statusLocked(status, message, states)
}

// HealthHandler serves /health. Only an unhealthy critical component makes
// it answer 503.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()
		code := http.StatusOK
		if health.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, health)
	}
}

// ReadyHandler serves /ready
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()
		code := http.StatusOK
		if readiness.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, readiness)
	}
}

// LivenessHandler serves /live, answering 200 while the process runs
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components.mu.RLock()
		uptime := time.Since(components.started).Round(time.Second).String()
		components.mu.RUnlock()
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive", "uptime": uptime})
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
