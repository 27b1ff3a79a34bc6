// Command maxproxy-server is the production entrypoint: it loads
// configuration, starts one monitor loop and one AMQP-consuming proxy
// Handler per configured cluster, and serves the admin/Prometheus HTTP
// surface until signaled to shut down. Grounded on
// _examples/iperfex-team-burrowctl's examples/server/main.go and
// server/server_factory.go's CreateServer/StartServer wiring, generalized
// from one fixed device/backend pair to a config-driven set of clusters.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lordbasex/maxproxy/internal/admin"
	"github.com/lordbasex/maxproxy/internal/classifier"
	"github.com/lordbasex/maxproxy/internal/config"
	"github.com/lordbasex/maxproxy/internal/monitor"
	"github.com/lordbasex/maxproxy/internal/proxy"
	"github.com/lordbasex/maxproxy/internal/rules"
)

func main() {
	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("[maxproxy] configuration error: %v", err)
	}

	reg := prometheus.NewRegistry()
	classifierMetrics := classifier.NewMetrics(reg)
	monitorMetrics := monitor.NewMetrics(reg)

	var rulesEng *rules.Engine
	if cfg.RulesFile != "" {
		rulesEng, err = rules.NewEngine(cfg.RulesFile)
		if err != nil {
			log.Fatalf("[maxproxy] loading rules file %q: %v", cfg.RulesFile, err)
		}
		if cfg.RulesWatch {
			if err := rulesEng.Watch(); err != nil {
				log.Printf("[maxproxy] rules watch disabled: %v", err)
			}
		}
		defer rulesEng.Stop()
	}

	registry := monitor.NewRegistry()
	handlers := make(map[string]*proxy.Handler, len(cfg.Clusters))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	for _, cluster := range cfg.Clusters {
		loopServers := make([]*monitor.MonitorServer, 0, len(cluster.Backends))
		for _, b := range cluster.Backends {
			srv := monitor.NewServer(b.Name, b.Address, b.Port, b.Driver)
			srv.Weight = b.Weight
			srv.Rank = b.Rank
			srv.DiskSpaceWarnPct = float64(b.DiskSpaceWarnPct)
			srv.DiskSpaceCriticalPct = float64(b.DiskSpaceCriticalPct)
			loopServers = append(loopServers, monitor.NewMonitorServer(srv))
		}

		loop, err := monitor.NewLoop(loopServers, monitor.NewSQLProber(), cluster.ToMonitorSettings(), monitorMetrics)
		if err != nil {
			log.Fatalf("[maxproxy] cluster %s: building monitor loop: %v", cluster.Name, err)
		}
		loop.Start()
		defer loop.Stop()

		registry.Register(cluster.Name, &monitor.ClusterMonitor{Loop: loop, Servers: loopServers})

		h, err := proxy.NewHandler(cluster, cfg.AMQPURL, registry, rulesEng, cluster.CacheMaxBytes)
		if err != nil {
			log.Fatalf("[maxproxy] cluster %s: building handler: %v", cluster.Name, err)
		}
		handlers[cluster.Name] = h

		wg.Add(1)
		go func(cluster config.ClusterConfig, h *proxy.Handler) {
			defer wg.Done()
			if err := h.Start(ctx); err != nil {
				log.Printf("[maxproxy] cluster %s: handler stopped: %v", cluster.Name, err)
			}
		}(cluster, h)
	}

	go observeCacheMetrics(ctx, handlers, classifierMetrics)

	adminSrv := admin.NewServer(registry, rulesEng, handlers, reg)
	httpSrv := &http.Server{Addr: cfg.AdminListenAddr, Handler: adminSrv.Handler()}
	go func() {
		log.Printf("[maxproxy] admin listener on %s", cfg.AdminListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[maxproxy] admin listener error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("[maxproxy] shutdown signal received, draining")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[maxproxy] admin listener shutdown: %v", err)
	}

	wg.Wait()
	log.Printf("[maxproxy] shutdown complete")
}

// observeCacheMetrics polls every cluster's aggregated classifier cache
// stats into one process-wide Observer, since Prometheus counters are
// process-global while each cluster's Handler only tracks its own
// workers' caches.
func observeCacheMetrics(ctx context.Context, handlers map[string]*proxy.Handler, metrics *classifier.Metrics) {
	observer := classifier.NewObserver(metrics)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var total classifier.Stats
			for _, h := range handlers {
				s := h.CacheStats()
				total.Size += s.Size
				total.Inserts += s.Inserts
				total.Hits += s.Hits
				total.Misses += s.Misses
				total.Evictions += s.Evictions
			}
			observer.Observe(total)
		}
	}
}
