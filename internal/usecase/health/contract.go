package health

import "context"

// StorePinger checks cache store availability.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// ModelChecker checks an embedding model endpoint's availability.
type ModelChecker interface {
	HealthCheck(ctx context.Context) error
}
