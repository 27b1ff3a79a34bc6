package monitor

import (
	"fmt"
	"sort"
	"sync"
)

// ClusterMonitor bundles one cluster's tick loop together with the
// MonitorServer set it drives, so callers holding a Registry can both pick
// a backend and reach the loop for admin requests or shutdown.
type ClusterMonitor struct {
	Loop    *Loop
	Servers []*MonitorServer
}

// Registry is the proxy's view onto every cluster's live backend set,
// generalizing the teacher's server/transactions.go map-behind-RWMutex
// registry (there: transaction ID to *Transaction; here: cluster name to
// *ClusterMonitor) to the routing lookup spec.md §4.7 describes.
type Registry struct {
	mu       sync.RWMutex
	clusters map[string]*ClusterMonitor
}

// NewRegistry builds an empty Registry; clusters are added with Register as
// their configs are loaded.
func NewRegistry() *Registry {
	return &Registry{clusters: make(map[string]*ClusterMonitor)}
}

// Register attaches a cluster's monitor loop and server set to the
// registry. It does not start the loop; the caller starts it.
func (r *Registry) Register(cluster string, cm *ClusterMonitor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clusters[cluster] = cm
}

// Cluster returns the ClusterMonitor registered for a cluster, if any.
func (r *Registry) Cluster(cluster string) (*ClusterMonitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cm, ok := r.clusters[cluster]
	return cm, ok
}

// Clusters returns the names of every registered cluster, sorted for
// deterministic admin-snapshot output.
func (r *Registry) Clusters() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clusters))
	for name := range r.clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ErrNoBackend is returned by Pick when no server in the cluster currently
// satisfies the requested role.
type ErrNoBackend struct {
	Cluster string
	Write   bool
}

func (e *ErrNoBackend) Error() string {
	role := "readable"
	if e.Write {
		role = "writable"
	}
	return fmt.Sprintf("monitor: no %s backend available for cluster %q", role, e.Cluster)
}

// Pick selects a backend for cluster per spec.md §4.7's routing rule: a
// write operation must land on the server with MASTER set; a read prefers
// a SLAVE but accepts any RUNNING server (including the master) if no
// slave is currently up. Servers under MAINT or DRAINING are skipped.
func (r *Registry) Pick(cluster string, write bool) (*Server, error) {
	cm, ok := r.Cluster(cluster)
	if !ok {
		return nil, fmt.Errorf("monitor: unknown cluster %q", cluster)
	}

	if write {
		for _, ms := range cm.Servers {
			st := ms.Server.Status()
			if st.Has(StatusMaster) && st.Has(StatusRunning) && !st.Has(StatusMaint) && !st.Has(StatusDraining) {
				return ms.Server, nil
			}
		}
		return nil, &ErrNoBackend{Cluster: cluster, Write: true}
	}

	var anyRunning *Server
	for _, ms := range cm.Servers {
		st := ms.Server.Status()
		if !st.Has(StatusRunning) || st.Has(StatusMaint) || st.Has(StatusDraining) {
			continue
		}
		if st.Has(StatusSlave) {
			return ms.Server, nil
		}
		if anyRunning == nil {
			anyRunning = ms.Server
		}
	}
	if anyRunning != nil {
		return anyRunning, nil
	}
	return nil, &ErrNoBackend{Cluster: cluster, Write: false}
}

// ServerByName finds a cluster's MonitorServer by its Server.Name, for the
// admin surface's setMaintenance operation.
func (r *Registry) ServerByName(cluster, server string) (*MonitorServer, error) {
	cm, ok := r.Cluster(cluster)
	if !ok {
		return nil, fmt.Errorf("monitor: unknown cluster %q", cluster)
	}
	for _, ms := range cm.Servers {
		if ms.Server.Name == server {
			return ms, nil
		}
	}
	return nil, fmt.Errorf("monitor: unknown server %q in cluster %q", server, cluster)
}
