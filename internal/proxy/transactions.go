package proxy

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Transaction is an active database transaction pinned to the backend it
// began on, grounded on server/transactions.go's Transaction.
type Transaction struct {
	ID        string
	Backend   string
	Tx        *sql.Tx
	StartTime time.Time
	LastUsed  time.Time
	mutex     sync.RWMutex
}

// TransactionManager registers active transactions by ID, grounded on
// server/transactions.go's TransactionManager.
type TransactionManager struct {
	transactions map[string]*Transaction
	mutex        sync.RWMutex
}

func NewTransactionManager() *TransactionManager {
	return &TransactionManager{transactions: make(map[string]*Transaction)}
}

// BeginTransaction starts a transaction against db (the backend picked for
// this cluster's writable server) and registers it under transactionID.
func (tm *TransactionManager) BeginTransaction(transactionID, backend string, db *sql.DB) (*Transaction, error) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	if _, exists := tm.transactions[transactionID]; exists {
		return nil, fmt.Errorf("transaction %s already exists", transactionID)
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin database transaction: %v", err)
	}

	transaction := &Transaction{
		ID:        transactionID,
		Backend:   backend,
		Tx:        tx,
		StartTime: time.Now(),
		LastUsed:  time.Now(),
	}
	tm.transactions[transactionID] = transaction

	log.Printf("[proxy] transaction started: %s (backend=%s)", transactionID, backend)
	return transaction, nil
}

func (tm *TransactionManager) GetTransaction(transactionID string) (*Transaction, bool) {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	transaction, exists := tm.transactions[transactionID]
	if exists {
		transaction.mutex.Lock()
		transaction.LastUsed = time.Now()
		transaction.mutex.Unlock()
	}
	return transaction, exists
}

func (tm *TransactionManager) CommitTransaction(transactionID string) error {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	transaction, exists := tm.transactions[transactionID]
	if !exists {
		return fmt.Errorf("transaction %s not found", transactionID)
	}
	if err := transaction.Tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction %s: %v", transactionID, err)
	}
	delete(tm.transactions, transactionID)

	log.Printf("[proxy] transaction committed: %s (duration: %v)", transactionID, time.Since(transaction.StartTime))
	return nil
}

func (tm *TransactionManager) RollbackTransaction(transactionID string) error {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	transaction, exists := tm.transactions[transactionID]
	if !exists {
		return fmt.Errorf("transaction %s not found", transactionID)
	}
	if err := transaction.Tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback transaction %s: %v", transactionID, err)
	}
	delete(tm.transactions, transactionID)

	log.Printf("[proxy] transaction rolled back: %s (duration: %v)", transactionID, time.Since(transaction.StartTime))
	return nil
}

// CleanupExpiredTransactions force-rolls-back any transaction inactive for
// longer than maxAge, grounded on server/transactions.go's cleanup loop.
func (tm *TransactionManager) CleanupExpiredTransactions(maxAge time.Duration) {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()

	now := time.Now()
	var expired []string
	for id, transaction := range tm.transactions {
		transaction.mutex.RLock()
		stale := now.Sub(transaction.LastUsed) > maxAge
		transaction.mutex.RUnlock()
		if stale {
			expired = append(expired, id)
		}
	}

	for _, id := range expired {
		transaction := tm.transactions[id]
		if err := transaction.Tx.Rollback(); err != nil {
			log.Printf("[proxy] error rolling back expired transaction %s: %v", id, err)
		}
		delete(tm.transactions, id)
		log.Printf("[proxy] expired transaction cleaned up: %s (duration: %v)", id, time.Since(transaction.StartTime))
	}
}

func (tm *TransactionManager) Stats() map[string]interface{} {
	tm.mutex.RLock()
	defer tm.mutex.RUnlock()

	stats := map[string]interface{}{
		"active_transactions": len(tm.transactions),
	}
	return stats
}

// handleTransaction routes a transaction-control command to its
// BEGIN/COMMIT/ROLLBACK handler, grounded on server/transactions.go's
// handleTransaction.
func (h *Handler) handleTransaction(ch *amqp.Channel, msg amqp.Delivery, req RPCRequest) {
	switch req.Command {
	case "BEGIN":
		h.handleBeginTransaction(ch, msg, req)
	case "COMMIT":
		h.handleCommitTransaction(ch, msg, req)
	case "ROLLBACK":
		h.handleRollbackTransaction(ch, msg, req)
	default:
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
			Error: fmt.Sprintf("unsupported transaction command: %s", req.Command),
		})
	}
}

func (h *Handler) handleBeginTransaction(ch *amqp.Channel, msg amqp.Delivery, req RPCRequest) {
	server, err := h.registry.Pick(h.cluster, true)
	if err != nil {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{Error: err.Error()})
		return
	}
	db, ok := h.backendDB(server.Name)
	if !ok {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
			Error: fmt.Sprintf("no open pool for backend %q", server.Name),
		})
		return
	}

	if _, err := h.transactionManager.BeginTransaction(req.TransactionID, server.Name, db); err != nil {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{Error: err.Error()})
		return
	}
	h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
		Columns: []string{"status"},
		Rows:    [][]interface{}{{"BEGIN"}},
	})
}

func (h *Handler) handleCommitTransaction(ch *amqp.Channel, msg amqp.Delivery, req RPCRequest) {
	if err := h.transactionManager.CommitTransaction(req.TransactionID); err != nil {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{Error: err.Error()})
		return
	}
	h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
		Columns: []string{"status"},
		Rows:    [][]interface{}{{"COMMIT"}},
	})
}

func (h *Handler) handleRollbackTransaction(ch *amqp.Channel, msg amqp.Delivery, req RPCRequest) {
	if err := h.transactionManager.RollbackTransaction(req.TransactionID); err != nil {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{Error: err.Error()})
		return
	}
	h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
		Columns: []string{"status"},
		Rows:    [][]interface{}{{"ROLLBACK"}},
	})
}
