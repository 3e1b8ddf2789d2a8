package logsource

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"

	"proxywatch/internal/models"
	"proxywatch/pkg/config"
)

// ElasticSource queries proxy telemetry from an Elasticsearch index.
type ElasticSource struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticSource connects to the configured Elasticsearch cluster.
func NewElasticSource(cfg config.ElasticConfig) (*ElasticSource, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	if cfg.InsecureSkipTLS {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticSource{client: client, index: cfg.Index}, nil
}

// Search executes the query and maps hits to typed events.
func (s *ElasticSource) Search(ctx context.Context, q Query) ([]models.ProxyEvent, error) {
	body, err := buildSearchBody(q)
	if err != nil {
		return nil, fmt.Errorf("failed to build search body: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search returned status %s", res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	events := make([]models.ProxyEvent, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		events = append(events, hit.Source.toEvent())
	}

	return events, nil
}

// buildSearchBody translates a Query into an Elasticsearch request body.
func buildSearchBody(q Query) ([]byte, error) {
	var filters []map[string]interface{}

	if q.RequireDomain {
		filters = append(filters, map[string]interface{}{
			"exists": map[string]interface{}{"field": "destination.domain"},
		})
	}

	if q.ClientID != "" {
		filters = append(filters, map[string]interface{}{
			"match": map[string]interface{}{"client_id": q.ClientID},
		})
	}

	if !q.Since.IsZero() {
		filters = append(filters, map[string]interface{}{
			"range": map[string]interface{}{
				"@timestamp": map[string]interface{}{
					"gte": q.Since.Format(time.RFC3339),
				},
			},
		})
	}

	var queryClause map[string]interface{}
	if len(filters) > 0 {
		queryClause = map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		}
	} else {
		queryClause = map[string]interface{}{
			"match_all": map[string]interface{}{},
		}
	}

	body := map[string]interface{}{
		"query": queryClause,
	}

	if q.Size > 0 {
		body["size"] = q.Size
	}
	if q.From > 0 {
		body["from"] = q.From
	}
	if q.SortDesc {
		body["sort"] = []map[string]interface{}{
			{"@timestamp": map[string]interface{}{"order": "desc"}},
		}
	}

	return json.Marshal(body)
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source esSource `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type esSource struct {
	Timestamp   string `json:"@timestamp"`
	ClientID    string `json:"client_id"`
	ClientName  string `json:"client_name"`
	Destination struct {
		Domain string `json:"domain"`
	} `json:"destination"`
}

// toEvent maps a raw hit to the typed event model, applying the documented
// fallbacks for optional fields.
func (s esSource) toEvent() models.ProxyEvent {
	event := models.ProxyEvent{
		RawTimestamp: s.Timestamp,
		ClientID:     s.ClientID,
		ClientName:   s.ClientName,
		Domain:       s.Destination.Domain,
	}
	if event.ClientName == "" {
		event.ClientName = models.UnknownClient
	}
	if event.Domain == "" {
		event.Domain = models.NoDomain
	}
	return event
}
