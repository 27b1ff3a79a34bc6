package proxy

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ServerHeartbeatConfig configures server-side heartbeat handling,
// grounded verbatim on server/heartbeat.go's ServerHeartbeatConfig.
type ServerHeartbeatConfig struct {
	Enabled         bool
	ResponseTimeout time.Duration
	CleanupInterval time.Duration
	MaxClientAge    time.Duration
}

func DefaultServerHeartbeatConfig() *ServerHeartbeatConfig {
	return &ServerHeartbeatConfig{
		Enabled:         true,
		ResponseTimeout: 100 * time.Millisecond,
		CleanupInterval: 2 * time.Minute,
		MaxClientAge:    3 * time.Minute,
	}
}

// ClientHeartbeatInfo tracks one client connection's liveness, grounded
// verbatim on server/heartbeat.go's ClientHeartbeatInfo, generalized from
// DeviceID to ClusterID.
type ClientHeartbeatInfo struct {
	ClusterID string
	ClientIP  string
	LastPing  time.Time
	LastPong  time.Time
	IsActive  bool
	PingCount int
	RPCActive bool
}

// ServerHeartbeatManager handles server-side heartbeat processing for one
// cluster's Handler, grounded on server/heartbeat.go's
// ServerHeartbeatManager.
type ServerHeartbeatManager struct {
	config    *ServerHeartbeatConfig
	clusterID string

	mutex   sync.RWMutex
	clients map[string]*ClientHeartbeatInfo

	stopChan chan struct{}
}

func NewServerHeartbeatManager(clusterID string, config *ServerHeartbeatConfig) *ServerHeartbeatManager {
	if config == nil {
		config = DefaultServerHeartbeatConfig()
	}
	return &ServerHeartbeatManager{
		config:    config,
		clusterID: clusterID,
		clients:   make(map[string]*ClientHeartbeatInfo),
		stopChan:  make(chan struct{}),
	}
}

func (shm *ServerHeartbeatManager) Start() {
	if !shm.config.Enabled {
		return
	}
	go shm.cleanupLoop()
	log.Printf("[proxy-heartbeat] started for cluster %s", shm.clusterID)
}

func (shm *ServerHeartbeatManager) Stop() {
	if !shm.config.Enabled {
		return
	}
	close(shm.stopChan)
	log.Printf("[proxy-heartbeat] stopped for cluster %s", shm.clusterID)
}

// HandleHeartbeatPing processes a heartbeat PING from a client, grounded
// verbatim on server/heartbeat.go's HandleHeartbeatPing.
func (shm *ServerHeartbeatManager) HandleHeartbeatPing(ch *amqp.Channel, msg amqp.Delivery) {
	if !shm.config.Enabled {
		return
	}

	var ping map[string]interface{}
	if err := json.Unmarshal(msg.Body, &ping); err != nil {
		log.Printf("[proxy-heartbeat] failed to parse ping: %v", err)
		return
	}

	clusterID, _ := ping["clusterID"].(string)
	clientIP, _ := ping["clientIP"].(string)
	corrID, _ := ping["corrID"].(string)

	if clusterID != shm.clusterID {
		log.Printf("[proxy-heartbeat] ignoring ping for cluster %s (this handler serves %s)", clusterID, shm.clusterID)
		return
	}

	shm.mutex.Lock()
	client, exists := shm.clients[clientIP]
	if !exists {
		client = &ClientHeartbeatInfo{ClusterID: clusterID, ClientIP: clientIP}
		shm.clients[clientIP] = client
	}
	client.LastPing = time.Now()
	client.IsActive = true
	client.PingCount++
	shm.mutex.Unlock()

	shm.sendHeartbeatPong(ch, msg.ReplyTo, corrID, clusterID, clientIP)
}

func (shm *ServerHeartbeatManager) sendHeartbeatPong(ch *amqp.Channel, replyTo, corrID, clusterID, clientIP string) {
	pong := map[string]interface{}{
		"type":      "heartbeat_pong",
		"clusterID": clusterID,
		"clientIP":  clientIP,
		"timestamp": time.Now().Unix(),
		"corrID":    corrID,
		"serverID":  shm.clusterID,
	}
	body, _ := json.Marshal(pong)

	if err := ch.PublishWithContext(context.Background(), "", replyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		Body:          body,
	}); err != nil {
		log.Printf("[proxy-heartbeat] failed to send pong to %s: %v", clientIP, err)
	}
}

func (shm *ServerHeartbeatManager) cleanupLoop() {
	ticker := time.NewTicker(shm.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-shm.stopChan:
			return
		case <-ticker.C:
			shm.cleanupStaleConnections()
		}
	}
}

func (shm *ServerHeartbeatManager) cleanupStaleConnections() {
	shm.mutex.Lock()
	defer shm.mutex.Unlock()

	now := time.Now()
	removed := 0
	for _, client := range shm.clients {
		if now.Sub(client.LastPing) > shm.config.MaxClientAge {
			client.IsActive = false
			removed++
		}
	}
	if removed > 0 {
		log.Printf("[proxy-heartbeat] cluster %s: marked %d clients inactive", shm.clusterID, removed)
	}
}

// GetActiveClients returns a snapshot of currently active clients.
func (shm *ServerHeartbeatManager) GetActiveClients() map[string]*ClientHeartbeatInfo {
	shm.mutex.RLock()
	defer shm.mutex.RUnlock()

	result := make(map[string]*ClientHeartbeatInfo)
	for clientIP, client := range shm.clients {
		if client.IsActive {
			cp := *client
			result[clientIP] = &cp
		}
	}
	return result
}

// ServerHeartbeatStats summarizes heartbeat activity for the admin surface.
type ServerHeartbeatStats struct {
	ClusterID     string
	ActiveClients int
	TotalClients  int
	TotalPings    int
	IsEnabled     bool
}

func (shm *ServerHeartbeatManager) GetStats() ServerHeartbeatStats {
	shm.mutex.RLock()
	defer shm.mutex.RUnlock()

	activeClients, totalPings := 0, 0
	for _, client := range shm.clients {
		if client.IsActive {
			activeClients++
		}
		totalPings += client.PingCount
	}
	return ServerHeartbeatStats{
		ClusterID:     shm.clusterID,
		ActiveClients: activeClients,
		TotalClients:  len(shm.clients),
		TotalPings:    totalPings,
		IsEnabled:     shm.config.Enabled,
	}
}
