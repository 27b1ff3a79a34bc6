// Package admin exposes the operator-facing diagnostic and control
// surface: a Prometheus /metrics endpoint plus a small set of JSON
// endpoints mirroring the teacher's server/monitoring.go functions
// (getCacheStats, getSystemStatus, ...) and its RegisterFunction-based
// maintenance escape hatches, reshaped from a console report and
// RPC-registered functions into plain HTTP since the admin surface has
// no AMQP client of its own.
package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lordbasex/maxproxy/internal/monitor"
	"github.com/lordbasex/maxproxy/internal/proxy"
	"github.com/lordbasex/maxproxy/internal/rules"
)

// Server is the admin HTTP surface for the whole maxproxy process: one
// instance serves every cluster, since operators reason about the fleet
// as a whole, not one AMQP queue at a time.
type Server struct {
	registry   *monitor.Registry
	rulesEng   *rules.Engine
	handlers   map[string]*proxy.Handler
	gatherer   prometheus.Gatherer
	startTime  time.Time
}

// NewServer builds an admin Server. reg is the Prometheus registry the
// rest of the process registers its collectors against; it is also used
// here to serve /metrics.
func NewServer(registry *monitor.Registry, rulesEng *rules.Engine, handlers map[string]*proxy.Handler, reg *prometheus.Registry) *Server {
	return &Server{
		registry:  registry,
		rulesEng:  rulesEng,
		handlers:  handlers,
		gatherer:  reg,
		startTime: time.Now(),
	}
}

// Handler returns the http.Handler to mount on the admin listener
// address, grounded on the teacher's RegisterMonitoringFunctions (there:
// RPC-dispatched functions; here: plain routes, since this surface has no
// AMQP envelope to decode).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/admin/status", s.handleStatus)
	mux.HandleFunc("/admin/cache", s.handleCacheStats)
	mux.HandleFunc("/admin/monitor", s.handleMonitorState)
	mux.HandleFunc("/admin/rules", s.handleRuleSetSummary)
	mux.HandleFunc("/admin/rules/reload", s.handleReloadRules)
	mux.HandleFunc("/admin/maintenance", s.handleSetMaintenance)
	return mux
}

// ServerStatus is one backend's admin-facing view, grounded on
// internal/monitor.Server/MonitorServer.
type ServerStatus struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	Port       int    `json:"port"`
	Status     string `json:"status"`
	ErrorCount int    `json:"errorCount"`
	LastError  string `json:"lastError,omitempty"`
}

// ClusterStatus is one cluster's admin-facing view: its backend set plus
// its most recent monitor events.
type ClusterStatus struct {
	Name         string          `json:"name"`
	Servers      []ServerStatus  `json:"servers"`
	RecentEvents []EventSummary  `json:"recentEvents"`
	Handler      map[string]interface{} `json:"handler,omitempty"`
}

// EventSummary is one monitor.EventRecord rendered for JSON, since
// monitor.Event's own String() is meant for log lines, not field names.
type EventSummary struct {
	Server string    `json:"server"`
	Event  string    `json:"event"`
	At     time.Time `json:"at"`
}

// AdminSnapshot is the full point-in-time system report, grounded on
// server/monitoring.go's printComprehensiveStats, restructured as JSON
// instead of a formatted console report.
type AdminSnapshot struct {
	Uptime   string          `json:"uptime"`
	Clusters []ClusterStatus `json:"clusters"`
}

// Snapshot builds the current AdminSnapshot across every registered
// cluster.
func (s *Server) Snapshot() AdminSnapshot {
	snap := AdminSnapshot{Uptime: time.Since(s.startTime).Round(time.Second).String()}

	for _, name := range s.registry.Clusters() {
		cm, ok := s.registry.Cluster(name)
		if !ok {
			continue
		}
		cs := ClusterStatus{Name: name}
		for _, ms := range cm.Servers {
			cs.Servers = append(cs.Servers, ServerStatus{
				Name:       ms.Server.Name,
				Address:    ms.Server.Address,
				Port:       ms.Server.Port,
				Status:     ms.Server.Status().String(),
				ErrorCount: ms.ErrorCount,
				LastError:  ms.LastError,
			})
		}
		if cm.Loop != nil {
			for _, ev := range cm.Loop.RecentEvents(20) {
				cs.RecentEvents = append(cs.RecentEvents, EventSummary{
					Server: ev.Server,
					Event:  ev.Event.String(),
					At:     ev.At,
				})
			}
		}
		if h, ok := s.handlers[name]; ok {
			cs.Handler = h.Stats()
		}
		snap.Clusters = append(snap.Clusters, cs)
	}

	return snap
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Snapshot())
}

// handleCacheStats answers the teacher's getCacheStats, aggregated per
// cluster since each cluster's Handler owns its own worker pool (and thus
// its own set of classifier caches).
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]interface{}, len(s.handlers))
	for name, h := range s.handlers {
		stats := h.CacheStats()
		hitRatio := float64(0)
		if total := stats.Hits + stats.Misses; total > 0 {
			hitRatio = float64(stats.Hits) / float64(total)
		}
		out[name] = map[string]interface{}{
			"size_bytes": stats.Size,
			"inserts":    stats.Inserts,
			"hits":       stats.Hits,
			"misses":     stats.Misses,
			"evictions":  stats.Evictions,
			"hit_ratio":  hitRatio,
		}
	}
	writeJSON(w, out)
}

// handleMonitorState answers getMonitorState: the backend status view
// without the per-handler stats handleStatus also includes.
func (s *Server) handleMonitorState(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]ServerStatus, len(s.registry.Clusters()))
	for _, name := range s.registry.Clusters() {
		cm, ok := s.registry.Cluster(name)
		if !ok {
			continue
		}
		var servers []ServerStatus
		for _, ms := range cm.Servers {
			servers = append(servers, ServerStatus{
				Name:       ms.Server.Name,
				Address:    ms.Server.Address,
				Port:       ms.Server.Port,
				Status:     ms.Server.Status().String(),
				ErrorCount: ms.ErrorCount,
				LastError:  ms.LastError,
			})
		}
		out[name] = servers
	}
	writeJSON(w, out)
}

// RuleSummary is a compact, JSON-friendly rendering of one compiled rule,
// since rules.Rule carries an unexported-by-convention *regexp.Regexp
// that doesn't marshal usefully.
type RuleSummary struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Literal   string `json:"literal,omitempty"`
	Regex     string `json:"regex,omitempty"`
}

// handleRuleSetSummary answers getRuleSetSummary: every configured
// store/use rule set, rendered for an operator to eyeball.
func (s *Server) handleRuleSetSummary(w http.ResponseWriter, r *http.Request) {
	if s.rulesEng == nil {
		writeJSON(w, map[string]interface{}{"sets": []interface{}{}})
		return
	}
	type setSummary struct {
		Store []RuleSummary `json:"store"`
		Use   []RuleSummary `json:"use"`
	}
	var sets []setSummary
	for _, set := range s.rulesEng.Sets() {
		sets = append(sets, setSummary{
			Store: summarizeRules(set.Store),
			Use:   summarizeRules(set.Use),
		})
	}
	writeJSON(w, map[string]interface{}{"sets": sets})
}

func summarizeRules(in []rules.Rule) []RuleSummary {
	out := make([]RuleSummary, len(in))
	for i, rule := range in {
		s := RuleSummary{Attribute: string(rule.Attribute), Operator: string(rule.Operator), Literal: rule.Literal}
		if rule.Regex != nil {
			s.Regex = rule.Regex.String()
		}
		out[i] = s
	}
	return out
}

// handleReloadRules answers reloadRules: a manual trigger alongside
// fsnotify's automatic Watch, for operators who'd rather reload on
// demand than wait for the watcher.
func (s *Server) handleReloadRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	if s.rulesEng == nil {
		http.Error(w, "rules engine not configured", http.StatusServiceUnavailable)
		return
	}
	path, err := s.rulesEng.Reload()
	if err != nil {
		writeJSON(w, map[string]interface{}{"reloaded": false, "error": err.Error()})
		return
	}
	writeJSON(w, map[string]interface{}{"reloaded": true, "path": path})
}

// maintenanceRequest is the POST body for /admin/maintenance.
type maintenanceRequest struct {
	Cluster string `json:"cluster"`
	Server  string `json:"server"`
	Action  string `json:"action"` // "maint-on" | "maint-off" | "draining-on" | "draining-off"
}

// handleSetMaintenance answers setMaintenance: an operator-posted
// maintenance/draining toggle, forwarded to monitor.MonitorServer's
// RequestAdmin so it applies at the next tick boundary rather than
// racing the monitor loop.
func (s *Server) handleSetMaintenance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	var req maintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	ms, err := s.registry.ServerByName(req.Cluster, req.Server)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	var admin monitor.AdminRequest
	switch req.Action {
	case "maint-on":
		admin = monitor.AdminMaintOn
	case "maint-off":
		admin = monitor.AdminMaintOff
	case "draining-on":
		admin = monitor.AdminDrainingOn
	case "draining-off":
		admin = monitor.AdminDrainingOff
	default:
		http.Error(w, fmt.Sprintf("unknown action %q", req.Action), http.StatusBadRequest)
		return
	}
	ms.RequestAdmin(admin)
	writeJSON(w, map[string]interface{}{"accepted": true})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// sortedClusterNames is kept for admin callers that want to iterate
// deterministically without going through Snapshot.
func (s *Server) sortedClusterNames() []string {
	names := s.registry.Clusters()
	sort.Strings(names)
	return names
}
