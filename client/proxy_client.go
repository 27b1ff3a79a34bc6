// Package client provides an extended ProxyClient that wraps the standard database/sql
// interface with specialized methods for different operation types.
package client

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ProxyClient gives callers a cleaner surface than raw database/sql for the
// two non-SQL operation kinds the proxy also carries: system commands and
// registered server-side functions, both multiplexed over db.Query by prefix.
type ProxyClient struct {
	db *sql.DB
}

// NewProxyClient creates a new ProxyClient wrapping a standard sql.DB connection.
// This provides a cleaner interface for different operation types while maintaining
// compatibility with the existing database/sql driver.
func NewProxyClient(dsn string) (*ProxyClient, error) {
	db, err := sql.Open("maxproxy", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open proxy connection: %w", err)
	}

	return &ProxyClient{db: db}, nil
}

// DB returns the underlying sql.DB instance for direct access to standard database operations.
// This maintains compatibility with existing code that uses the database/sql interface.
func (bc *ProxyClient) DB() *sql.DB {
	return bc.db
}

// Close closes the underlying database connection.
func (bc *ProxyClient) Close() error {
	return bc.db.Close()
}

// Ping verifies the connection is still alive.
func (bc *ProxyClient) Ping() error {
	return bc.db.Ping()
}

// Query executes a standard SQL query with parameter binding.
// This is equivalent to db.Query() but provides a cleaner interface.
func (bc *ProxyClient) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return bc.db.Query(query, args...)
}

// QueryRow executes a SQL query that is expected to return at most one row.
func (bc *ProxyClient) QueryRow(query string, args ...interface{}) *sql.Row {
	return bc.db.QueryRow(query, args...)
}

// Exec executes a SQL statement that doesn't return rows.
func (bc *ProxyClient) Exec(query string, args ...interface{}) (sql.Result, error) {
	return bc.db.Exec(query, args...)
}

// Begin starts a transaction.
func (bc *ProxyClient) Begin() (*sql.Tx, error) {
	return bc.db.Begin()
}

// Prepare creates a prepared statement.
func (bc *ProxyClient) Prepare(query string) (*sql.Stmt, error) {
	return bc.db.Prepare(query)
}

// CommandResult represents the result of a system command execution.
type CommandResult struct {
	Command    string    `json:"command"`
	ExitCode   int       `json:"exit_code"`
	Stdout     []string  `json:"stdout"`
	Stderr     []string  `json:"stderr"`
	ExecutedAt time.Time `json:"executed_at"`
}

// ExecCommand executes a system command on the remote server.
// This provides a cleaner interface than using db.Query("COMMAND:...").
func (bc *ProxyClient) ExecCommand(command string) (*CommandResult, error) {
	rows, err := bc.db.Query("COMMAND:" + command)
	if err != nil {
		return nil, fmt.Errorf("command execution failed: %w", err)
	}
	defer rows.Close()

	result := &CommandResult{
		Command:    command,
		ExecutedAt: time.Now(),
		Stdout:     make([]string, 0),
		Stderr:     make([]string, 0),
	}

	// Process command output
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan command output: %w", err)
		}
		
		// Simple heuristic: if line contains "error" or "ERROR", treat as stderr
		if strings.Contains(strings.ToLower(line), "error") {
			result.Stderr = append(result.Stderr, line)
		} else {
			result.Stdout = append(result.Stdout, line)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading command results: %w", err)
	}

	return result, nil
}

// FunctionParam represents a typed parameter for function calls.
type FunctionParam struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// FunctionRequest represents a function call request.
type FunctionRequest struct {
	Name   string          `json:"name"`
	Params []FunctionParam `json:"params"`
}

// FunctionResult represents the result of a function execution.
type FunctionResult struct {
	Function   string        `json:"function"`
	Result     interface{}   `json:"result"`
	Error      string        `json:"error,omitempty"`
	ExecutedAt time.Time     `json:"executed_at"`
	Duration   time.Duration `json:"duration"`
}

// ExecFunction executes a custom function on the remote server.
// This provides a cleaner interface than using db.Query("FUNCTION:...").
func (bc *ProxyClient) ExecFunction(name string, params ...FunctionParam) (*FunctionResult, error) {
	start := time.Now()
	
	funcReq := FunctionRequest{
		Name:   name,
		Params: params,
	}

	jsonData, err := json.Marshal(funcReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal function request: %w", err)
	}

	rows, err := bc.db.Query("FUNCTION:" + string(jsonData))
	if err != nil {
		return &FunctionResult{
			Function:   name,
			Error:      err.Error(),
			ExecutedAt: start,
			Duration:   time.Since(start),
		}, fmt.Errorf("function execution failed: %w", err)
	}
	defer rows.Close()

	result := &FunctionResult{
		Function:   name,
		ExecutedAt: start,
		Duration:   time.Since(start),
	}

	// Process function result
	if rows.Next() {
		var resultStr string
		if err := rows.Scan(&resultStr); err != nil {
			result.Error = err.Error()
			return result, fmt.Errorf("failed to scan function result: %w", err)
		}
		
		// Try to parse as JSON, fallback to string
		var jsonResult interface{}
		if err := json.Unmarshal([]byte(resultStr), &jsonResult); err == nil {
			result.Result = jsonResult
		} else {
			result.Result = resultStr
		}
	}

	if err := rows.Err(); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("error reading function results: %w", err)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Helper functions for common parameter types

// StringParam creates a string parameter for function calls.
func StringParam(value string) FunctionParam {
	return FunctionParam{Type: "string", Value: value}
}

// IntParam creates an integer parameter for function calls.
func IntParam(value int) FunctionParam {
	return FunctionParam{Type: "int", Value: value}
}

// Int64Param creates an int64 parameter for function calls.
func Int64Param(value int64) FunctionParam {
	return FunctionParam{Type: "int64", Value: value}
}

// Float64Param creates a float64 parameter for function calls.
func Float64Param(value float64) FunctionParam {
	return FunctionParam{Type: "float64", Value: value}
}

// BoolParam creates a boolean parameter for function calls.
func BoolParam(value bool) FunctionParam {
	return FunctionParam{Type: "bool", Value: value}
}

// JSONParam creates a JSON parameter for function calls.
func JSONParam(value interface{}) FunctionParam {
	return FunctionParam{Type: "json", Value: value}
}