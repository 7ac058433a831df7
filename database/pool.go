package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"github.com/minus34/gnaf-loader/settings"
)

// Each pipeline stage opens its pool by stage name so a long COPY run and a
// later QA pass don't fight over the same connections. Pools left idle past
// the cleanup window are closed in the background.
var (
	pools           = make(map[string]*pgxpool.Pool)
	poolsMu         sync.Mutex
	poolLastUsed    = make(map[string]time.Time)
	cleanupInterval = 1 * time.Minute
)

func init() {
	go reapIdlePools()
}

// reapIdlePools closes pools whose connections have all gone idle and that
// no stage has touched for two cleanup intervals.
func reapIdlePools() {
	idleDuration := 2 * cleanupInterval

	for {
		time.Sleep(cleanupInterval)

		poolsMu.Lock()
		for name, pool := range pools {
			lastUsed, ok := poolLastUsed[name]
			if !ok || time.Since(lastUsed) > idleDuration {
				stats := pool.Stat()
				if stats.TotalConns() == stats.IdleConns() {
					pool.Close()
					delete(pools, name)
					delete(poolLastUsed, name)
					log.Debugf("Closed idle database pool: %s", name)
				}
			}
		}
		poolsMu.Unlock()
	}
}

// CloseDBPools closes every open pool. Called once, when the run finishes.
func CloseDBPools() {
	poolsMu.Lock()
	defer poolsMu.Unlock()
	for _, pool := range pools {
		pool.Close()
	}
	pools = make(map[string]*pgxpool.Pool)
	poolLastUsed = make(map[string]time.Time)
}

// GetDBPool returns the named pool, opening it on first use. MaxConns comes
// from the database config; the loader sizes its COPY workers to match.
func GetDBPool(name string, config settings.DatabaseConfig) (*pgxpool.Pool, error) {
	poolsMu.Lock()
	defer poolsMu.Unlock()

	if pool, ok := pools[name]; ok {
		poolLastUsed[name] = time.Now()
		return pool, nil
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}
	poolConfig.MaxConns = config.MaxConnections

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database '%s': %w", name, err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error connecting to database '%s': %w", name, err)
	}

	log.Debugf("Opened new database pool: %s", name)
	pools[name] = pool
	poolLastUsed[name] = time.Now()
	return pool, nil
}
