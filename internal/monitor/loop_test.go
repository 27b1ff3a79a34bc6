package monitor

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// scriptedProbe returns a fixed sequence of (Status, error) per server
// name, one per call to Probe, repeating the last entry once exhausted.
type scriptedProbe struct {
	calls map[string]int
	plan  map[string][]probeResult
}

type probeResult struct {
	status Status
	err    error
}

func newScriptedProbe(plan map[string][]probeResult) *scriptedProbe {
	return &scriptedProbe{calls: map[string]int{}, plan: plan}
}

func (p *scriptedProbe) Probe(_ context.Context, srv *Server) (Status, error) {
	seq := p.plan[srv.Name]
	i := p.calls[srv.Name]
	if i >= len(seq) {
		i = len(seq) - 1
	}
	p.calls[srv.Name]++
	if i < 0 {
		return 0, fmt.Errorf("no probe plan for %s", srv.Name)
	}
	r := seq[i]
	return r.status, r.err
}

func newTestCluster() (master, slave1, slave2 *MonitorServer) {
	master = NewMonitorServer(NewServer("m1", "127.0.0.1", 3306, "mysql"))
	slave1 = NewMonitorServer(NewServer("s1", "127.0.0.1", 3307, "mysql"))
	slave2 = NewMonitorServer(NewServer("s2", "127.0.0.1", 3308, "mysql"))
	return
}

// TestThreeServerReplicationScenario drives a three-server cluster
// through master-up, both-slaves-up, then a master failure followed by
// one slave being promoted, and asserts each server's status after each
// tick matches what a real replication topology would produce (S1).
func TestThreeServerReplicationScenario(t *testing.T) {
	master, slave1, slave2 := newTestCluster()
	servers := []*MonitorServer{master, slave1, slave2}

	plan := map[string][]probeResult{
		"m1": {{status: StatusMaster, err: nil}, {status: 0, err: fmt.Errorf("connect refused")}},
		"s1": {{status: StatusSlave, err: nil}, {status: StatusSlave, err: nil}, {status: StatusMaster, err: nil}},
		"s2": {{status: StatusSlave, err: nil}},
	}
	prober := newScriptedProbe(plan)

	settings := DefaultSettings()
	settings.TickInterval = time.Hour // driven manually via tick(), not the ticker

	loop, err := NewLoop(servers, prober, settings, nil)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	// Tick 1: everything comes up.
	loop.tick()
	if master.Server.Status() != StatusRunning|StatusMaster {
		t.Fatalf("tick1: master status = %v", master.Server.Status())
	}
	if slave1.Server.Status() != StatusRunning|StatusSlave {
		t.Fatalf("tick1: slave1 status = %v", slave1.Server.Status())
	}

	// Tick 2: master goes down, slave1 is about to be promoted in the
	// probe stream but hasn't reported it yet, so nothing changes for it.
	loop.tick()
	if master.Server.Status() != 0 {
		t.Fatalf("tick2: master should be fully down, got %v", master.Server.Status())
	}

	// Tick 3: slave1 reports itself as the new master.
	loop.tick()
	if !slave1.Server.Status().Has(StatusMaster) {
		t.Fatalf("tick3: slave1 should have been promoted, status = %v", slave1.Server.Status())
	}
}

// TestConnectRetriesGateDownTransition verifies spec.md §7.1/§4.4: a
// server is not marked DOWN until connect_attempts consecutive probe
// failures have accumulated. With ConnectRetries=3, the first two
// failed ticks must leave prior role bits untouched; only the third
// clears them.
func TestConnectRetriesGateDownTransition(t *testing.T) {
	master, _, _ := newTestCluster()

	prober := newScriptedProbe(map[string][]probeResult{
		"m1": {
			{status: StatusMaster, err: nil},
			{status: 0, err: fmt.Errorf("connect refused")},
			{status: 0, err: fmt.Errorf("connect refused")},
			{status: 0, err: fmt.Errorf("connect refused")},
		},
	})

	settings := DefaultSettings()
	settings.ConnectRetries = 3
	settings.TickInterval = time.Hour

	loop, err := NewLoop([]*MonitorServer{master}, prober, settings, nil)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}

	loop.tick() // tick1: comes up as master
	if !master.Server.Status().Has(StatusMaster) {
		t.Fatalf("tick1: expected MASTER set, got %v", master.Server.Status())
	}

	loop.tick() // tick2: 1st failure, attempts not exhausted
	if !master.Server.Status().Has(StatusMaster) {
		t.Fatalf("tick2: MASTER should survive a single failed probe, got %v", master.Server.Status())
	}
	if master.ErrorCount != 1 {
		t.Fatalf("tick2: expected ErrorCount 1, got %d", master.ErrorCount)
	}

	loop.tick() // tick3: 2nd failure, still not exhausted
	if !master.Server.Status().Has(StatusMaster) {
		t.Fatalf("tick3: MASTER should still survive, got %v", master.Server.Status())
	}

	loop.tick() // tick4: 3rd failure, connect_attempts exhausted -> DOWN
	if master.Server.Status() != 0 {
		t.Fatalf("tick4: expected server fully down after connect_attempts exhausted, got %v", master.Server.Status())
	}
}

func TestProbeOneClearsStaleRoleBits(t *testing.T) {
	master, _, _ := newTestCluster()
	master.Server.setStatus(StatusRunning | StatusMaster)

	prober := newScriptedProbe(map[string][]probeResult{
		"m1": {{status: StatusSlave, err: nil}},
	})
	loop, err := NewLoop([]*MonitorServer{master}, prober, DefaultSettings(), nil)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	loop.tick()
	st := master.Server.Status()
	if st.Has(StatusMaster) {
		t.Fatalf("expected MASTER bit cleared after demotion, got %v", st)
	}
	if !st.Has(StatusSlave) {
		t.Fatalf("expected SLAVE bit set after demotion, got %v", st)
	}
}

func TestMaintenanceSuppressesRoleBits(t *testing.T) {
	master, _, _ := newTestCluster()
	prober := newScriptedProbe(map[string][]probeResult{
		"m1": {{status: StatusMaster, err: nil}},
	})
	loop, err := NewLoop([]*MonitorServer{master}, prober, DefaultSettings(), nil)
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	master.RequestAdmin(AdminMaintOn)
	loop.tick()
	st := master.Server.Status()
	if st.Has(StatusMaster) {
		t.Fatalf("expected MASTER suppressed while under maintenance, got %v", st)
	}
	if !st.Has(StatusMaint) {
		t.Fatalf("expected MAINT bit set, got %v", st)
	}
}
