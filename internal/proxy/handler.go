package proxy

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/lordbasex/maxproxy/internal/classifier"
	"github.com/lordbasex/maxproxy/internal/config"
	"github.com/lordbasex/maxproxy/internal/extcmd"
	"github.com/lordbasex/maxproxy/internal/monitor"
	"github.com/lordbasex/maxproxy/internal/rules"
)

// Handler is one cluster's message consumer: it owns that cluster's AMQP
// queue, its backend connection pools, and the worker pool that classifies,
// routes and executes each request. Grounded on server/server.go's Handler,
// generalized from a single fixed MySQL DSN to a monitor-registry-backed
// set of MySQL/Postgres backends per cluster.
type Handler struct {
	cluster string
	queue   string
	amqpURL string

	registry *monitor.Registry
	rulesEng *rules.Engine
	parser   classifier.Parser

	backendMu sync.RWMutex
	backends  map[string]*sql.DB

	workerPool         *WorkerPool
	rateLimiter        *RateLimiter
	transactionManager *TransactionManager
	heartbeatManager   *ServerHeartbeatManager

	funcMu           sync.RWMutex
	functionRegistry map[string]interface{}
}

// NewHandler builds a Handler for one cluster: it opens one pooled *sql.DB
// per configured backend (grounded on server/server.go's NewHandler pool
// setup) and wires the worker pool, rate limiter and transaction manager
// the teacher already builds inline in its constructor.
func NewHandler(cluster config.ClusterConfig, amqpURL string, registry *monitor.Registry, rulesEng *rules.Engine, cacheMaxBytes int64) (*Handler, error) {
	h := &Handler{
		cluster:            cluster.Name,
		queue:              cluster.Queue,
		amqpURL:            amqpURL,
		registry:           registry,
		rulesEng:           rulesEng,
		parser:             classifier.NewDefaultParser(0, 0),
		backends:           make(map[string]*sql.DB),
		transactionManager: NewTransactionManager(),
		heartbeatManager:   NewServerHeartbeatManager(cluster.Name, nil),
		functionRegistry:   make(map[string]interface{}),
	}

	for _, b := range cluster.Backends {
		db, err := openBackendPool(b, cluster)
		if err != nil {
			return nil, fmt.Errorf("proxy: opening backend %q: %w", b.Name, err)
		}
		h.backends[b.Name] = db
	}

	h.workerPool = NewWorkerPool(h, &WorkerPoolConfig{
		WorkerCount: cluster.Workers,
		QueueSize:   cluster.QueueSize,
		Timeout:     30 * time.Second,
	}, cacheMaxBytes)

	h.rateLimiter = NewRateLimiterForCluster(cluster.Name, cluster.RateLimit, cluster.BurstSize)

	return h, nil
}

// openBackendPool opens the *sql.DB for one backend, preferring an
// explicit DSN and falling back to address/port composition matching
// internal/monitor.SQLProber's dsnFor, so the proxy and the monitor agree
// on how to reach the same servers.
func openBackendPool(b config.BackendConfig, cluster config.ClusterConfig) (*sql.DB, error) {
	driverName := b.Driver
	if driverName == "" {
		driverName = "mysql"
	}
	dsn := b.DSN
	if dsn == "" {
		switch driverName {
		case "postgres":
			dsn = fmt.Sprintf("host=%s port=%d sslmode=disable", b.Address, b.Port)
		default:
			dsn = fmt.Sprintf("tcp(%s:%d)/", b.Address, b.Port)
		}
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxIdleConns(cluster.PoolIdle)
	db.SetMaxOpenConns(cluster.PoolOpen)
	db.SetConnMaxLifetime(cluster.ConnLifetime)
	return db, nil
}

func (h *Handler) backendDB(name string) (*sql.DB, bool) {
	h.backendMu.RLock()
	defer h.backendMu.RUnlock()
	db, ok := h.backends[name]
	return db, ok
}

// RegisterFunction registers a single function in the function registry,
// grounded verbatim on server/server.go's RegisterFunction.
func (h *Handler) RegisterFunction(name string, function interface{}) {
	h.funcMu.Lock()
	defer h.funcMu.Unlock()
	h.functionRegistry[name] = function
	log.Printf("[proxy] cluster %s: function %q registered", h.cluster, name)
}

// RegisterFunctions registers multiple functions at once.
func (h *Handler) RegisterFunctions(functions map[string]interface{}) {
	h.funcMu.Lock()
	defer h.funcMu.Unlock()
	for name, fn := range functions {
		h.functionRegistry[name] = fn
	}
	log.Printf("[proxy] cluster %s: %d functions registered", h.cluster, len(functions))
}

// GetRegisteredFunctions returns every registered function name.
func (h *Handler) GetRegisteredFunctions() []string {
	h.funcMu.RLock()
	defer h.funcMu.RUnlock()
	names := make([]string, 0, len(h.functionRegistry))
	for name := range h.functionRegistry {
		names = append(names, name)
	}
	return names
}

// Start dials AMQP, declares the cluster's queue, and runs the consume
// loop until ctx is cancelled, grounded on server/server.go's Start.
func (h *Handler) Start(ctx context.Context) error {
	conn, err := amqp.Dial(h.amqpURL)
	if err != nil {
		return fmt.Errorf("proxy: connecting to amqp: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(h.queue, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("proxy: declaring queue %q: %w", h.queue, err)
	}

	msgs, err := ch.Consume(h.queue, "", true, true, false, false, nil)
	if err != nil {
		return err
	}

	log.Printf("[proxy] cluster %s listening on queue %q", h.cluster, h.queue)

	if err := h.workerPool.Start(); err != nil {
		return fmt.Errorf("proxy: starting worker pool: %w", err)
	}
	defer h.workerPool.Stop(10 * time.Second)
	defer h.rateLimiter.Stop()

	h.heartbeatManager.Start()
	defer h.heartbeatManager.Stop()

	go h.transactionCleanupLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[proxy] cluster %s shutting down", h.cluster)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			task := MessageTask{Channel: ch, Message: msg, Timestamp: time.Now()}
			if err := h.workerPool.SubmitTask(task); err != nil {
				log.Printf("[proxy] cluster %s: failed to submit task: %v", h.cluster, err)
				errResp := RPCResponse{Error: "proxy overloaded, please retry"}
				if body, merr := json.Marshal(errResp); merr == nil {
					ch.PublishWithContext(ctx, "", msg.ReplyTo, false, false, amqp.Publishing{
						ContentType:   "application/json",
						CorrelationId: msg.CorrelationId,
						Body:          body,
					})
				}
			}
		}
	}
}

func (h *Handler) transactionCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.transactionManager.CleanupExpiredTransactions(10 * time.Minute)
		}
	}
}

// handleMessage routes one delivery to the right sub-handler, grounded on
// server/server.go's handleMessage. cache is the calling worker's own
// classifier.Cache (one per long-lived worker goroutine).
func (h *Handler) handleMessage(ch *amqp.Channel, msg amqp.Delivery, cache *classifier.Cache) {
	var req RPCRequest
	if err := json.Unmarshal(msg.Body, &req); err != nil {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{Error: err.Error()})
		return
	}

	if !h.rateLimiter.AllowSession(req.User, req.ClientIP) {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
			Error: "rate limit exceeded, please slow down",
		})
		return
	}

	// client.ProxyClient sends commands and functions as SQL text with a
	// "COMMAND:" or "FUNCTION:" prefix; route those to their own handlers.
	if req.Type == "sql" {
		if strings.HasPrefix(req.Query, "COMMAND:") {
			req.Type, req.Query = "command", strings.TrimPrefix(req.Query, "COMMAND:")
		} else if strings.HasPrefix(req.Query, "FUNCTION:") {
			req.Type, req.Query = "function", strings.TrimPrefix(req.Query, "FUNCTION:")
		}
	}

	log.Printf("[proxy] cluster=%s ip=%s type=%s", h.cluster, req.ClientIP, req.Type)

	switch req.Type {
	case "sql":
		h.handleSQL(ch, msg, req, cache)
	case "function":
		h.handleFunction(ch, msg, req)
	case "command":
		h.handleCommand(ch, msg, req)
	case "transaction":
		h.handleTransaction(ch, msg, req)
	case "heartbeat_ping":
		h.heartbeatManager.HandleHeartbeatPing(ch, msg)
	default:
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
			Error: fmt.Sprintf("unsupported type: %s", req.Type),
		})
	}
}

// handleSQL classifies the statement, asks the rule engine whether it is
// cacheable, picks a backend from the cluster's monitor registry, and
// executes it. Grounded on server/server.go's handleSQL, extended with the
// classify/route steps SPEC_FULL.md §4.7 adds.
func (h *Handler) handleSQL(ch *amqp.Channel, msg amqp.Delivery, req RPCRequest, cache *classifier.Cache) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	canonical := h.parser.Canonicalize(req.Query)
	key := classifier.CanonicalKey(canonical, false)

	scope := classifier.Open(cache, h.parser, key)
	defer scope.Close()

	result := scope.Result()
	if result == nil {
		parsed, err := h.parser.Parse(canonical)
		if err != nil {
			h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{Error: err.Error()})
			return
		}
		scope.Populate(parsed)
		result = parsed
	}

	cacheable := h.evaluateCacheable(req, result)

	write := result.Operation.IsWrite()
	switch req.RoutingHint {
	case "master":
		write = true
	case "slave":
		write = false
	}

	var rows *sql.Rows
	var err error

	if req.TransactionID != "" {
		txn, exists := h.transactionManager.GetTransaction(req.TransactionID)
		if !exists {
			h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
				Error: fmt.Sprintf("transaction %s not found", req.TransactionID),
			})
			return
		}
		rows, err = txn.Tx.QueryContext(ctx, req.Query, req.Params...)
	} else {
		srv, perr := h.registry.Pick(h.cluster, write)
		if perr != nil {
			h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{Error: perr.Error()})
			return
		}
		db, ok := h.backendDB(srv.Name)
		if !ok {
			h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
				Error: fmt.Sprintf("no open pool for backend %q", srv.Name),
			})
			return
		}
		rows, err = db.QueryContext(ctx, req.Query, req.Params...)
	}
	if err != nil {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{Error: err.Error()})
		return
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{Error: err.Error()})
		return
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{Error: err.Error()})
		return
	}

	var data [][]interface{}
	for rows.Next() {
		scanDest := make([]interface{}, len(cols))
		for i := range scanDest {
			scanDest[i] = new(interface{})
		}
		if err := rows.Scan(scanDest...); err != nil {
			h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{Error: err.Error()})
			return
		}
		row := make([]interface{}, len(cols))
		for i, val := range scanDest {
			row[i] = convertDatabaseValue(*(val.(*interface{})), colTypes[i])
		}
		data = append(data, row)
	}

	h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
		Columns:   cols,
		Rows:      data,
		Cacheable: cacheable,
	})
}

// evaluateCacheable asks the cluster's rule engine whether this statement
// should be stored in and served from a result cache; the proxy only
// computes the decision and reports it back, since spec.md's non-goals
// leave the actual result-set cache to an external filter.
func (h *Handler) evaluateCacheable(req RPCRequest, result *classifier.Result) bool {
	if h.rulesEng == nil {
		return false
	}
	info := rules.QueryInfo{
		DefaultDB: req.DefaultDB,
		RawSQL:    req.Query,
		Databases: result.Databases,
		Tables:    toRuleTables(result.Tables),
		Columns:   toRuleColumns(result.Columns),
	}
	session := rules.Session{User: req.User, Host: req.ClientIP}
	return h.rulesEng.ShouldStore(info) && h.rulesEng.ShouldUse(session)
}

func toRuleTables(tables []classifier.TableRef) []rules.TableRef {
	out := make([]rules.TableRef, len(tables))
	for i, t := range tables {
		out[i] = rules.TableRef{Database: t.Database, Table: t.Table}
	}
	return out
}

func toRuleColumns(cols []classifier.ColumnRef) []rules.ColumnRef {
	out := make([]rules.ColumnRef, len(cols))
	for i, c := range cols {
		out[i] = rules.ColumnRef{Database: c.Database, Table: c.Table, Column: c.Column}
	}
	return out
}

// convertDatabaseValue converts a scanned column value to a
// JSON-serializable representation, grounded verbatim on
// server/server.go's convertDatabaseValue.
func convertDatabaseValue(val interface{}, colType *sql.ColumnType) interface{} {
	if val == nil {
		return nil
	}
	switch v := val.(type) {
	case []byte:
		switch colType.DatabaseTypeName() {
		case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT":
			str := string(v)
			if str == "" {
				return 0
			}
			return str
		case "DECIMAL", "NUMERIC", "FLOAT", "DOUBLE", "REAL":
			return string(v)
		default:
			return string(v)
		}
	case string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// handleCommand runs an ad-hoc operator command through internal/extcmd
// instead of a raw exec.CommandContext, so the same tokenize/timeout/
// classify machinery the monitor uses for hook scripts backs ad-hoc
// commands too. Grounded on server/server.go's handleCommand.
func (h *Handler) handleCommand(ch *amqp.Channel, msg amqp.Delivery, req RPCRequest) {
	commandLine := req.Command
	if commandLine == "" {
		commandLine = req.Query
	}
	if commandLine == "" {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{Error: "empty command"})
		return
	}

	cmd, err := extcmd.Create(commandLine, 30*time.Second)
	if err != nil {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
			Error: fmt.Sprintf("command failed: %v", err),
		})
		return
	}

	var mu sync.Mutex
	var lines []string
	cmd.SetSink(func(sev extcmd.Severity, line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
		extcmd.DefaultSink(sev, line)
	})

	res, err := cmd.Execute()
	if err != nil {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
			Error: fmt.Sprintf("command failed: %v", err),
		})
		return
	}
	if res.ExitCode != 0 || res.Signaled {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
			Error: fmt.Sprintf("command exited with code %d (signaled=%v, timed_out=%v)", res.ExitCode, res.Signaled, res.TimedOut),
		})
		return
	}

	rows := make([][]interface{}, len(lines))
	for i, l := range lines {
		rows[i] = []interface{}{l}
	}
	if len(rows) == 0 {
		rows = append(rows, []interface{}{"(command executed successfully - no output)"})
	}

	h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
		Columns: []string{"output"},
		Rows:    rows,
	})
}

// handleFunction dispatches a registered function by name via reflection,
// grounded on server/server.go's handleFunction/executeFunction chain.
func (h *Handler) handleFunction(ch *amqp.Channel, msg amqp.Delivery, req RPCRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var funcReq FunctionRequest
	if err := json.Unmarshal([]byte(req.Query), &funcReq); err != nil {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
			Error: fmt.Sprintf("invalid function request: %v", err),
		})
		return
	}

	results, err := h.executeFunction(ctx, funcReq)
	if err != nil {
		h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{
			Error: fmt.Sprintf("function execution failed: %v", err),
		})
		return
	}

	columns, rows := convertFunctionResult(results)
	h.respond(ch, msg.ReplyTo, msg.CorrelationId, RPCResponse{Columns: columns, Rows: rows})
}

func (h *Handler) executeFunction(ctx context.Context, funcReq FunctionRequest) ([]interface{}, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	h.funcMu.RLock()
	fn, exists := h.functionRegistry[funcReq.Name]
	h.funcMu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("function %q not found", funcReq.Name)
	}
	funcValue := reflect.ValueOf(fn)

	params, err := prepareFunctionParams(funcReq.Params, funcValue.Type())
	if err != nil {
		return nil, fmt.Errorf("preparing parameters: %w", err)
	}

	results := funcValue.Call(params)
	output := make([]interface{}, len(results))
	for i, r := range results {
		output[i] = r.Interface()
	}
	return output, nil
}

func prepareFunctionParams(params []FunctionParam, funcType reflect.Type) ([]reflect.Value, error) {
	if len(params) != funcType.NumIn() {
		return nil, fmt.Errorf("expected %d parameters, got %d", funcType.NumIn(), len(params))
	}
	values := make([]reflect.Value, len(params))
	for i, p := range params {
		v, err := convertToType(p.Value, funcType.In(i))
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

func convertToType(value interface{}, targetType reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(targetType), nil
	}
	valueType := reflect.TypeOf(value)
	if valueType == targetType {
		return reflect.ValueOf(value), nil
	}

	switch targetType.Kind() {
	case reflect.String:
		return reflect.ValueOf(fmt.Sprintf("%v", value)), nil
	case reflect.Int, reflect.Int64:
		switch v := value.(type) {
		case float64:
			return reflect.ValueOf(v).Convert(targetType), nil
		case string:
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return reflect.ValueOf(i).Convert(targetType), nil
			}
		}
	case reflect.Float64, reflect.Float32:
		switch v := value.(type) {
		case float64:
			return reflect.ValueOf(v).Convert(targetType), nil
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return reflect.ValueOf(f).Convert(targetType), nil
			}
		}
	case reflect.Bool:
		switch v := value.(type) {
		case bool:
			return reflect.ValueOf(v), nil
		case string:
			if b, err := strconv.ParseBool(v); err == nil {
				return reflect.ValueOf(b), nil
			}
		}
	case reflect.Slice:
		if valueType.Kind() == reflect.Slice {
			src := reflect.ValueOf(value)
			dst := reflect.MakeSlice(targetType, src.Len(), src.Len())
			for i := 0; i < src.Len(); i++ {
				converted, err := convertToType(src.Index(i).Interface(), targetType.Elem())
				if err != nil {
					return reflect.Value{}, err
				}
				dst.Index(i).Set(converted)
			}
			return dst, nil
		}
	case reflect.Struct:
		if valueType.Kind() == reflect.Map || valueType.Kind() == reflect.Interface {
			if jsonData, err := json.Marshal(value); err == nil {
				newValue := reflect.New(targetType)
				if json.Unmarshal(jsonData, newValue.Interface()) == nil {
					return newValue.Elem(), nil
				}
			}
		}
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %v to %v", valueType, targetType)
}

func convertFunctionResult(results []interface{}) ([]string, [][]interface{}) {
	if len(results) == 0 {
		return []string{"result"}, [][]interface{}{{"no output"}}
	}

	if len(results) == 1 {
		if err, ok := results[0].(error); ok {
			if err != nil {
				return []string{"error"}, [][]interface{}{{err.Error()}}
			}
			return []string{"result"}, [][]interface{}{{"success"}}
		}
		return []string{"result"}, [][]interface{}{{formatResult(results[0])}}
	}

	columns := make([]string, len(results))
	row := make([]interface{}, len(results))
	for i, res := range results {
		columns[i] = fmt.Sprintf("result_%d", i+1)
		if err, ok := res.(error); ok {
			if err != nil {
				row[i] = err.Error()
			} else {
				row[i] = "success"
			}
			continue
		}
		row[i] = formatResult(res)
	}
	return columns, [][]interface{}{row}
}

func formatResult(result interface{}) interface{} {
	if result == nil {
		return "null"
	}
	switch v := result.(type) {
	case []int, []string:
		return fmt.Sprintf("%v", v)
	default:
		if reflect.TypeOf(result).Kind() == reflect.Struct {
			if jsonData, err := json.Marshal(v); err == nil {
				return string(jsonData)
			}
			return fmt.Sprintf("%+v", v)
		}
		return result
	}
}

// Cluster returns the name of the cluster this Handler serves.
func (h *Handler) Cluster() string { return h.cluster }

// CacheStats aggregates this cluster's worker pool classifier caches, for
// the admin surface's getCacheStats operation.
func (h *Handler) CacheStats() classifier.Stats { return h.workerPool.CacheStats() }

// ClearCache drops every worker's classifier cache, grounded on
// server/server.go's ClearCache (invoked by the teacher's
// clearAllCaches admin function).
func (h *Handler) ClearCache() {
	for _, c := range h.workerPool.caches {
		c.Clear()
	}
}

// Stats gathers this Handler's worker pool, rate limiter, transaction
// manager and heartbeat manager stats for the admin surface, grounded on
// server/monitoring.go's comprehensive stats report.
func (h *Handler) Stats() map[string]interface{} {
	return map[string]interface{}{
		"cluster":      h.cluster,
		"worker_pool":  h.workerPool.GetStats(),
		"rate_limiter": h.rateLimiter.GetStats(),
		"transactions": h.transactionManager.Stats(),
		"heartbeat":    h.heartbeatManager.GetStats(),
		"functions":    h.GetRegisteredFunctions(),
	}
}

// respond publishes resp to replyTo over ch, grounded verbatim on
// server/server.go's respond.
func (h *Handler) respond(ch *amqp.Channel, replyTo, corrID string, resp RPCResponse) {
	body, err := json.Marshal(resp)
	if err != nil {
		log.Printf("[proxy] cluster %s: marshaling response: %v", h.cluster, err)
		return
	}
	if perr := ch.PublishWithContext(context.Background(), "", replyTo, false, false, amqp.Publishing{
		ContentType:   "application/json",
		CorrelationId: corrID,
		Body:          body,
	}); perr != nil {
		log.Printf("[proxy] cluster %s: publishing response: %v", h.cluster, perr)
	}
}
