package logsource

import (
	"context"
	"time"

	"proxywatch/internal/models"
)

// Query describes one search against the telemetry store.
type Query struct {
	// ClientID filters to a single client when non-empty.
	ClientID string

	// RequireDomain keeps only events that carry a destination domain.
	RequireDomain bool

	// Since keeps only events at or after the given time when non-zero.
	Since time.Time

	// Size limits the number of returned events.
	Size int

	// From is the pagination offset.
	From int

	// SortDesc orders results newest first.
	SortDesc bool
}

// Source is an abstract query interface over proxy telemetry.
type Source interface {
	Search(ctx context.Context, q Query) ([]models.ProxyEvent, error)
}
