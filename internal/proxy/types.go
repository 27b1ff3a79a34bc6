// Package proxy implements the router/handler half of maxproxy: one
// Handler per cluster consumes that cluster's AMQP queue, classifies and
// caches each statement, consults the rule engine and backend registry to
// pick a target, and executes against a pooled *sql.DB. Grounded on the
// teacher's server/server.go, worker_pool.go, rate_limiter.go and
// transactions.go, generalized from "one fixed MySQL DSN" to "many
// clusters, each with a monitored multi-backend set."
package proxy

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RPCRequest is the wire request, extended from the teacher's
// server/types.go RPCRequest with the fields routing and transactions
// need: ClusterID (generalizing DeviceID), RoutingHint and TransactionID/
// Command (already implied by server/transactions.go's usage but absent
// from its RPCRequest listing).
type RPCRequest struct {
	Type          string        `json:"type"`
	ClusterID     string        `json:"clusterID"`
	Query         string        `json:"query"`
	Params        []interface{} `json:"params"`
	ClientIP      string        `json:"clientIP"`
	User          string        `json:"user"`
	DefaultDB     string        `json:"defaultDB"`
	RoutingHint   string        `json:"routingHint"`
	TransactionID string        `json:"transactionID"`
	Command       string        `json:"command"`
}

// RPCResponse is the wire response, extended with a Cacheable hint so a
// client-side cache (if any) knows whether the rule engine's should_store
// chain allowed this statement's result to be memoized.
type RPCResponse struct {
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	Error     string          `json:"error"`
	Cacheable bool            `json:"cacheable,omitempty"`
}

// FunctionParam, FunctionRequest mirror client.FunctionParam/FunctionRequest
// for the server side of the "FUNCTION:" JSON envelope.
type FunctionParam struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

type FunctionRequest struct {
	Name   string          `json:"name"`
	Params []FunctionParam `json:"params"`
}

// MessageTask is one queued unit of work for the worker pool, grounded on
// server/worker_pool.go's MessageTask.
type MessageTask struct {
	Channel   *amqp.Channel
	Message   amqp.Delivery
	Timestamp time.Time
}

// PoolConfig mirrors server/types.go's PoolConfig for the per-backend
// *sql.DB the Handler opens.
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// WorkerPoolConfig mirrors server/worker_pool.go's WorkerPoolConfig.
type WorkerPoolConfig struct {
	WorkerCount int
	QueueSize   int
	Timeout     time.Duration
}

// RateLimiterConfig configures one cluster's RateLimiter, grounded on
// server/rate_limiter.go's RateLimiterConfig but carrying the owning
// cluster's name so throttle logs can be attributed to it.
type RateLimiterConfig struct {
	ClusterName       string
	RequestsPerSecond int
	BurstSize         int
	CleanupInterval   time.Duration
}

func DefaultRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		RequestsPerSecond: 10,
		BurstSize:         20,
		CleanupInterval:   5 * time.Minute,
	}
}
