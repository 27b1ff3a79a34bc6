package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeClustersFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "clusters.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadClustersFileAppliesDefaults(t *testing.T) {
	path := writeClustersFile(t, `[{"name":"orders","backends":[{"name":"orders-a","driver":"mysql","address":"db1","port":3306}]}]`)

	clusters, err := LoadClustersFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if c.Queue != "orders" {
		t.Fatalf("expected queue to default to cluster name, got %q", c.Queue)
	}
	if c.Workers != DefaultClusterConfig().Workers {
		t.Fatalf("expected default worker count, got %d", c.Workers)
	}
	if c.MonitorInterval != 2*time.Second {
		t.Fatalf("expected default monitor interval, got %v", c.MonitorInterval)
	}
}

func TestLoadClustersFileRejectsMissingName(t *testing.T) {
	path := writeClustersFile(t, `[{"backends":[]}]`)
	if _, err := LoadClustersFile(path); err == nil {
		t.Fatal("expected error for cluster missing a name")
	}
}

func TestLoadClustersFileHonorsExplicitSettings(t *testing.T) {
	path := writeClustersFile(t, `[{"name":"orders","queue":"orders_queue","workers":5,"rate_limit":10}]`)

	clusters, err := LoadClustersFile(path)
	if err != nil {
		t.Fatal(err)
	}
	c := clusters[0]
	if c.Queue != "orders_queue" {
		t.Fatalf("expected explicit queue to be preserved, got %q", c.Queue)
	}
	if c.Workers != 5 {
		t.Fatalf("expected explicit worker count to be preserved, got %d", c.Workers)
	}
	if c.RateLimit != 10 {
		t.Fatalf("expected explicit rate limit to be preserved, got %d", c.RateLimit)
	}
	if c.BurstSize != DefaultClusterConfig().BurstSize {
		t.Fatalf("expected burst size to fall back to default, got %d", c.BurstSize)
	}
}

func TestToMonitorSettings(t *testing.T) {
	c := DefaultClusterConfig()
	c.NotificationScript = "/bin/true"
	c.DiskSpaceMaxFailures = 7

	s := c.ToMonitorSettings()
	if s.TickInterval != c.MonitorInterval {
		t.Fatalf("expected tick interval %v, got %v", c.MonitorInterval, s.TickInterval)
	}
	if s.Script != "/bin/true" {
		t.Fatalf("expected script to carry over, got %q", s.Script)
	}
	if s.DiskSpaceMaxFailures != 7 {
		t.Fatalf("expected disk space max failures to carry over, got %d", s.DiskSpaceMaxFailures)
	}
}

func TestBackendConfigRoundTripsJSON(t *testing.T) {
	b := BackendConfig{Name: "orders-a", Driver: "mysql", Address: "db1", Port: 3306, Weight: 1, Rank: 0}
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	var out BackendConfig
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out != b {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, b)
	}
}
