package roster

import (
	"context"

	"proxywatch/internal/models"
)

// Roster lists the known clients whose behavior is monitored. Account
// management and persistence live elsewhere; the detection engine only needs
// this listing call.
type Roster interface {
	List(ctx context.Context) ([]models.Client, error)
}

// Static serves a fixed client list, typically from configuration.
type Static struct {
	clients []models.Client
}

// NewStatic creates a roster over the given clients.
func NewStatic(clients []models.Client) *Static {
	return &Static{clients: clients}
}

// List returns a copy of the roster.
func (s *Static) List(_ context.Context) ([]models.Client, error) {
	out := make([]models.Client, len(s.clients))
	copy(out, s.clients)
	return out, nil
}
