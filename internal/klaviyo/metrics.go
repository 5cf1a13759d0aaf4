package klaviyo

import (
	"context"
	"net/http"
)

// Metric is an event type known to the Klaviyo account.
type Metric struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Integration string `json:"integration,omitempty"`
	Created     string `json:"created,omitempty"`
	Updated     string `json:"updated,omitempty"`
}

type metricResource struct {
	ID         string `json:"id"`
	Attributes struct {
		Name        string `json:"name"`
		Created     string `json:"created"`
		Updated     string `json:"updated"`
		Integration *struct {
			Name string `json:"name"`
		} `json:"integration"`
	} `json:"attributes"`
}

func (r metricResource) toMetric() Metric {
	m := Metric{
		ID:      r.ID,
		Name:    r.Attributes.Name,
		Created: r.Attributes.Created,
		Updated: r.Attributes.Updated,
	}
	if r.Attributes.Integration != nil {
		m.Integration = r.Attributes.Integration.Name
	}
	return m
}

// GetMetrics lists the account's metrics.
func (c *Client) GetMetrics(ctx context.Context) ([]Metric, error) {
	var out struct {
		Data []metricResource `json:"data"`
	}
	err := c.do(ctx, request{operation: "get_metrics", method: http.MethodGet, path: "/metrics/"}, &out)
	if err != nil {
		return nil, err
	}

	metrics := make([]Metric, 0, len(out.Data))
	for _, r := range out.Data {
		metrics = append(metrics, r.toMetric())
	}
	return metrics, nil
}

// GetMetric fetches one metric by id.
func (c *Client) GetMetric(ctx context.Context, metricID string) (Metric, error) {
	var out struct {
		Data metricResource `json:"data"`
	}
	err := c.do(ctx, request{
		operation: "get_metric",
		method:    http.MethodGet,
		path:      resourcePath("metrics", metricID),
	}, &out)
	if err != nil {
		return Metric{}, err
	}
	return out.Data.toMetric(), nil
}
