package client

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Conn implements database/sql/driver.Conn over the AMQP RPC transport.
// It owns a reconnecting AMQP connection manager, an optional heartbeat
// manager, and at most one in-flight transaction.
type Conn struct {
	clusterID        string
	connMgr          *ConnectionManager
	config           *DSNConfig
	heartbeatManager *HeartbeatManager

	txMutex  sync.Mutex
	activeTx *Tx
}

// setupHeartbeat wires a HeartbeatManager to the connection when the DSN
// requested one. Heartbeat is best-effort: a nil manager means every call
// into it below is skipped.
func (c *Conn) setupHeartbeat() {
	if c.config.HeartbeatConfig == nil || !c.config.HeartbeatConfig.Enabled {
		return
	}
	c.heartbeatManager = NewHeartbeatManager(c.connMgr, c.clusterID, getOutboundIP(), c.config.HeartbeatConfig)
	c.heartbeatManager.SetCallbacks(func(err error) {
		c.logf("heartbeat reports connection dead: %v", err)
	}, nil)
}

func (c *Conn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("Prepare not implemented")
}

func (c *Conn) Close() error {
	if c.heartbeatManager != nil {
		c.heartbeatManager.Stop()
	}
	return c.connMgr.Close()
}

func (c *Conn) Begin() (driver.Tx, error) {
	c.txMutex.Lock()
	defer c.txMutex.Unlock()

	if c.activeTx != nil {
		return nil, errors.New("a transaction is already active on this connection")
	}

	tx := newTransaction(c)
	if err := tx.executeTransactionCommand("BEGIN"); err != nil {
		tx.cancel()
		return nil, fmt.Errorf("failed to begin transaction: %v", err)
	}
	c.activeTx = tx
	return tx, nil
}

// clearFinishedTransaction drops the connection's reference to a completed
// transaction so Begin can be called again.
func (c *Conn) clearFinishedTransaction() {
	c.txMutex.Lock()
	defer c.txMutex.Unlock()
	c.activeTx = nil
}

func (c *Conn) Query(query string, args []driver.Value) (driver.Rows, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()
	named := make([]driver.NamedValue, len(args))
	for i, v := range args {
		named[i] = driver.NamedValue{Ordinal: i + 1, Value: v}
	}
	return c.queryRPC(ctx, query, named)
}

func (c *Conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return c.queryRPC(ctx, query, args)
}

func (c *Conn) queryRPC(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if c.heartbeatManager != nil {
		c.heartbeatManager.ActivateHeartbeat()
		defer c.heartbeatManager.DeactivateHeartbeat()
	}

	amqpConn, err := c.connMgr.GetConnection()
	if err != nil {
		return nil, fmt.Errorf("no active connection: %w", err)
	}

	ch, err := amqpConn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	replyQueue, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, err
	}

	corrID := fmt.Sprintf("%d", time.Now().UnixNano())

	req := map[string]interface{}{
		"type":        "sql",
		"clusterID":   c.clusterID,
		"query":       query,
		"params":      argsToSlice(args),
		"clientIP":    getOutboundIP(),
		"routingHint": "",
	}
	c.txMutex.Lock()
	if c.activeTx != nil {
		req["transactionID"] = c.activeTx.transactionID
	}
	c.txMutex.Unlock()

	body, _ := json.Marshal(req)

	err = ch.PublishWithContext(ctx, "", c.clusterID, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		ReplyTo:       replyQueue.Name,
		Body:          body,
	})
	if err != nil {
		return nil, err
	}

	msgs, err := ch.Consume(replyQueue.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, errors.New("timeout waiting for cluster response")
	case msg := <-msgs:
		if msg.CorrelationId != corrID {
			return nil, errors.New("correlation id mismatch")
		}
		var resp RPCResponse
		if err := json.Unmarshal(msg.Body, &resp); err != nil {
			return nil, err
		}
		if resp.Error != "" {
			return nil, errors.New(resp.Error)
		}
		return &Rows{columns: resp.Columns, rows: resp.Rows}, nil
	}
}

// logf provides conditional debug logging gated by the DSN's debug flag.
func (c *Conn) logf(format string, args ...interface{}) {
	if c.config != nil && c.config.Debug {
		c.connMgr.logf(format, args...)
	}
}

func argsToSlice(args []driver.NamedValue) []interface{} {
	var out []interface{}
	for _, a := range args {
		out = append(out, a.Value)
	}
	return out
}

// getOutboundIP reports the local address used to reach the outside world,
// for inclusion in requests as the client IP the proxy logs and rate-limits on.
func getOutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "unknown"
	}
	defer conn.Close()
	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
