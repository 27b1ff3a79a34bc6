package monitor

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// SQLProber probes MySQL and Postgres backends over database/sql,
// keeping one pooled *sql.DB per server name so a probe never pays
// connection-establishment cost on every tick once a backend is
// healthy. This is the default Prober wired into cmd/maxproxy-server;
// tests use the scripted fake in loop_test.go instead.
type SQLProber struct {
	mu    sync.Mutex
	pools map[string]*sql.DB
}

func NewSQLProber() *SQLProber {
	return &SQLProber{pools: make(map[string]*sql.DB)}
}

func (p *SQLProber) poolFor(srv *Server) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if db, ok := p.pools[srv.Name]; ok {
		return db, nil
	}
	dsn, driver, err := dsnFor(srv)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	p.pools[srv.Name] = db
	return db, nil
}

func dsnFor(srv *Server) (dsn, driver string, err error) {
	switch srv.Driver {
	case "mysql", "":
		return fmt.Sprintf("tcp(%s:%d)/", srv.Address, srv.Port), "mysql", nil
	case "postgres":
		return fmt.Sprintf("host=%s port=%d sslmode=disable", srv.Address, srv.Port), "postgres", nil
	default:
		return "", "", fmt.Errorf("monitor: unknown driver %q for server %s", srv.Driver, srv.Name)
	}
}

// Probe implements Prober. It never returns the RUNNING bit: the caller
// adds that once Probe returns without error.
func (p *SQLProber) Probe(ctx context.Context, srv *Server) (Status, error) {
	db, err := p.poolFor(srv)
	if err != nil {
		return 0, err
	}
	if err := db.PingContext(ctx); err != nil {
		return 0, err
	}
	switch srv.Driver {
	case "postgres":
		return p.probePostgres(ctx, db)
	default:
		return p.probeMySQL(ctx, db)
	}
}

func (p *SQLProber) probeMySQL(ctx context.Context, db *sql.DB) (Status, error) {
	rows, err := db.QueryContext(ctx, "SHOW SLAVE STATUS")
	if err != nil {
		// Older/variant servers expose SHOW REPLICA STATUS instead; a
		// syntax error here is not a connectivity failure, so fall back
		// rather than treat it as down.
		rows, err = db.QueryContext(ctx, "SHOW REPLICA STATUS")
	}
	isSlave := false
	if err == nil {
		isSlave = rows.Next()
		rows.Close()
	}
	if isSlave {
		return StatusSlave, nil
	}

	var readOnly string
	if err := db.QueryRowContext(ctx, "SELECT @@read_only").Scan(&readOnly); err != nil {
		return 0, err
	}
	if readOnly == "1" {
		return StatusSlave, nil
	}
	return StatusMaster, nil
}

func (p *SQLProber) probePostgres(ctx context.Context, db *sql.DB) (Status, error) {
	var inRecovery bool
	if err := db.QueryRowContext(ctx, "SELECT pg_is_in_recovery()").Scan(&inRecovery); err != nil {
		return 0, err
	}
	if inRecovery {
		return StatusSlave, nil
	}
	return StatusMaster, nil
}

// Close releases every pooled connection.
func (p *SQLProber) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for name, db := range p.pools {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("monitor: closing pool for %s: %w", name, err)
		}
	}
	return firstErr
}
