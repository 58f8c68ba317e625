package db

import "context"

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthProbe reports database reachability for the /health endpoint.
type HealthProbe struct {
	pool Pinger
}

// NewHealthProbe creates a probe backed by the given connection pool.
func NewHealthProbe(pool Pinger) *HealthProbe {
	return &HealthProbe{pool: pool}
}

// Name identifies the probe in health check responses.
func (p *HealthProbe) Name() string { return "database" }

// Check pings the database, respecting the context deadline.
func (p *HealthProbe) Check(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
