package klaviyo

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/allisson/klaviyo-relay/internal/commerce/domain"
)

// Track submits an event. A unique id, when present, is forwarded for remote deduplication.
func (c *Client) Track(ctx context.Context, event domain.Event) error {
	err := c.do(ctx, request{
		operation: "track",
		method:    http.MethodPost,
		path:      "/events/",
		body:      event.Payload(c.now().UTC()),
	}, nil)
	if err != nil {
		return err
	}

	c.logger.Info("klaviyo event tracked", slog.String("event_name", event.Name))
	return nil
}

// TrackOnce submits an event that must carry a unique id.
// A missing id fails before any network call.
func (c *Client) TrackOnce(ctx context.Context, event domain.Event) error {
	if err := event.RequireUniqueID(); err != nil {
		return err
	}
	return c.Track(ctx, event)
}
