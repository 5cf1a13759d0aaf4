package klaviyo

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/allisson/klaviyo-relay/internal/commerce/domain"
)

type profileCollection struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// Identify upserts the profile keyed by the customer's email.
func (c *Client) Identify(ctx context.Context, customer domain.Customer) error {
	err := c.do(ctx, request{
		operation: "identify",
		method:    http.MethodPost,
		path:      "/profile-import/",
		body:      customer.ProfileDocument(),
	}, nil)
	if err != nil {
		return err
	}

	c.logger.Info("klaviyo profile identified", slog.String("email", customer.Email))
	return nil
}

// UpdateProfile patches the profile with the given remote id.
func (c *Client) UpdateProfile(ctx context.Context, profileID string, customer domain.Customer) error {
	return c.do(ctx, request{
		operation: "update_profile",
		method:    http.MethodPatch,
		path:      resourcePath("profiles", profileID),
		body: domain.Document{Data: domain.Resource{
			Type:       "profile",
			ID:         profileID,
			Attributes: customer.ProfileAttributes(),
		}},
	}, nil)
}

// DeleteProfile requests erasure of the profile with the given email.
// It returns false without calling the deletion endpoint when no profile matches.
func (c *Client) DeleteProfile(ctx context.Context, email string) (bool, error) {
	profileID, found, err := c.lookupProfileID(ctx, email)
	if err != nil || !found {
		return false, err
	}

	err = c.do(ctx, request{
		operation: "delete_profile",
		method:    http.MethodPost,
		path:      "/data-privacy-deletion-jobs/",
		body: domain.Document{Data: domain.Resource{
			Type: "data-privacy-deletion-job",
			Attributes: map[string]any{
				"profile": map[string]any{
					"data": domain.Resource{Type: "profile", ID: profileID},
				},
			},
		}},
	}, nil)
	if err != nil {
		return false, err
	}

	c.logger.Info("klaviyo profile deletion requested",
		slog.String("email", email),
		slog.String("profile_id", profileID),
	)
	return true, nil
}

// AddToList subscribes the profile with the given email to a list.
// It returns false without calling the list endpoint when no profile matches.
func (c *Client) AddToList(ctx context.Context, listID, email string) (bool, error) {
	return c.changeListMembership(ctx, "add_to_list", http.MethodPost, listID, email)
}

// RemoveFromList unsubscribes the profile with the given email from a list.
// It returns false without calling the list endpoint when no profile matches.
func (c *Client) RemoveFromList(ctx context.Context, listID, email string) (bool, error) {
	return c.changeListMembership(ctx, "remove_from_list", http.MethodDelete, listID, email)
}

func (c *Client) changeListMembership(
	ctx context.Context,
	operation, method, listID, email string,
) (bool, error) {
	profileID, found, err := c.lookupProfileID(ctx, email)
	if err != nil || !found {
		return false, err
	}

	err = c.do(ctx, request{
		operation: operation,
		method:    method,
		path:      "/lists/" + url.PathEscape(listID) + "/relationships/profiles/",
		body: domain.Relationship{Data: []domain.Resource{
			{Type: "profile", ID: profileID},
		}},
	}, nil)
	if IsNotFound(err) {
		c.logger.Warn("klaviyo list not found", slog.String("list_id", listID), slog.String("operation", operation))
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// lookupProfileID resolves a profile id by email. found is false when no profile matches.
func (c *Client) lookupProfileID(ctx context.Context, email string) (string, bool, error) {
	var out profileCollection
	err := c.do(ctx, request{
		operation: "get_profile",
		method:    http.MethodGet,
		path:      "/profiles/",
		query:     url.Values{"filter": {fmt.Sprintf("equals(email,%q)", email)}},
	}, &out)
	if err != nil {
		return "", false, err
	}

	if len(out.Data) == 0 || out.Data[0].ID == "" {
		c.logger.Warn("klaviyo profile not found", slog.String("email", email))
		return "", false, nil
	}
	return out.Data[0].ID, true, nil
}
