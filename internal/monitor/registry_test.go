package monitor

import "testing"

func newTestMonitorServer(name string, st Status) *MonitorServer {
	srv := NewServer(name, "127.0.0.1", 3306, "mysql")
	srv.setStatus(st)
	ms := NewMonitorServer(srv)
	return ms
}

func TestRegistryPickWriteRequiresMaster(t *testing.T) {
	r := NewRegistry()
	master := newTestMonitorServer("a", StatusRunning|StatusMaster)
	slave := newTestMonitorServer("b", StatusRunning|StatusSlave)
	r.Register("orders", &ClusterMonitor{Servers: []*MonitorServer{master, slave}})

	picked, err := r.Pick("orders", true)
	if err != nil {
		t.Fatal(err)
	}
	if picked.Name != "a" {
		t.Fatalf("expected master %q, got %q", "a", picked.Name)
	}
}

func TestRegistryPickWriteFailsWithoutMaster(t *testing.T) {
	r := NewRegistry()
	slave := newTestMonitorServer("b", StatusRunning|StatusSlave)
	r.Register("orders", &ClusterMonitor{Servers: []*MonitorServer{slave}})

	if _, err := r.Pick("orders", true); err == nil {
		t.Fatal("expected ErrNoBackend when no master is running")
	}
}

func TestRegistryPickReadPrefersSlave(t *testing.T) {
	r := NewRegistry()
	master := newTestMonitorServer("a", StatusRunning|StatusMaster)
	slave := newTestMonitorServer("b", StatusRunning|StatusSlave)
	r.Register("orders", &ClusterMonitor{Servers: []*MonitorServer{master, slave}})

	picked, err := r.Pick("orders", false)
	if err != nil {
		t.Fatal(err)
	}
	if picked.Name != "b" {
		t.Fatalf("expected slave %q preferred for reads, got %q", "b", picked.Name)
	}
}

func TestRegistryPickReadFallsBackToMasterWithoutSlave(t *testing.T) {
	r := NewRegistry()
	master := newTestMonitorServer("a", StatusRunning|StatusMaster)
	r.Register("orders", &ClusterMonitor{Servers: []*MonitorServer{master}})

	picked, err := r.Pick("orders", false)
	if err != nil {
		t.Fatal(err)
	}
	if picked.Name != "a" {
		t.Fatalf("expected fallback to master %q, got %q", "a", picked.Name)
	}
}

func TestRegistryPickSkipsMaintAndDraining(t *testing.T) {
	r := NewRegistry()
	maint := newTestMonitorServer("a", StatusRunning|StatusMaster|StatusMaint)
	draining := newTestMonitorServer("b", StatusRunning|StatusSlave|StatusDraining)
	r.Register("orders", &ClusterMonitor{Servers: []*MonitorServer{maint, draining}})

	if _, err := r.Pick("orders", true); err == nil {
		t.Fatal("expected no writable backend while master is under maintenance")
	}
	if _, err := r.Pick("orders", false); err == nil {
		t.Fatal("expected no readable backend while the only slave is draining")
	}
}

func TestRegistryPickUnknownCluster(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Pick("missing", true); err == nil {
		t.Fatal("expected error for unknown cluster")
	}
}

func TestRegistryServerByName(t *testing.T) {
	r := NewRegistry()
	a := newTestMonitorServer("a", StatusRunning|StatusMaster)
	r.Register("orders", &ClusterMonitor{Servers: []*MonitorServer{a}})

	ms, err := r.ServerByName("orders", "a")
	if err != nil {
		t.Fatal(err)
	}
	if ms != a {
		t.Fatal("expected ServerByName to return the registered instance")
	}

	if _, err := r.ServerByName("orders", "missing"); err == nil {
		t.Fatal("expected error for unknown server name")
	}
}

func TestRegistryClustersSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", &ClusterMonitor{})
	r.Register("alpha", &ClusterMonitor{})

	names := r.Clusters()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("expected sorted cluster names, got %v", names)
	}
}
