package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/allisson/klaviyo-relay/internal/commerce/http/dto"
	commerceUseCase "github.com/allisson/klaviyo-relay/internal/commerce/usecase"
	"github.com/allisson/klaviyo-relay/internal/klaviyo"
	customValidation "github.com/allisson/klaviyo-relay/internal/validation"
)

// MetricLister lists the metrics known to the marketing account.
type MetricLister interface {
	GetMetrics(ctx context.Context) ([]klaviyo.Metric, error)
}

// RunDeleteProfile queues a privacy deletion for the profile identified by email.
// The deletion runs on the events queue like one received at ingress.
func RunDeleteProfile(
	ctx context.Context,
	relayUseCase commerceUseCase.RelayUseCase,
	logger *slog.Logger,
	out io.Writer,
	email string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	req := dto.EmailRequest{Email: strings.TrimSpace(email)}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid email: %w", customValidation.WrapValidationError(err))
	}

	job, err := relayUseCase.DeleteProfile(ctx, req.Email)
	if err != nil {
		return fmt.Errorf("failed to queue profile deletion: %w", err)
	}

	logger.Info("profile deletion queued", slog.String("job_id", job.ID.String()))

	if format == "json" {
		return writeJSON(out, dto.MapJobsToAcceptedResponse("Profile deletion queued", job))
	}

	_, err = fmt.Fprintf(out, "Profile deletion queued (job %s)\n", job.ID)
	return err
}

// RunSyncCatalog reads a catalog document ({"products": [...]}) from in, validates it with
// the same rules as the ingress endpoint and queues it as one bulk sync job.
func RunSyncCatalog(
	ctx context.Context,
	relayUseCase commerceUseCase.RelayUseCase,
	logger *slog.Logger,
	in io.Reader,
	out io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	var req dto.CatalogSyncRequest
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		return fmt.Errorf("failed to decode catalog: %w", err)
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid catalog: %w", customValidation.WrapValidationError(err))
	}

	products, err := req.ToDomain()
	if err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}

	job, err := relayUseCase.SyncCatalog(ctx, products)
	if err != nil {
		return fmt.Errorf("failed to queue catalog sync: %w", err)
	}

	logger.Info("catalog sync queued",
		slog.String("job_id", job.ID.String()),
		slog.Int("products", len(products)),
	)

	if format == "json" {
		return writeJSON(out, dto.MapJobsToAcceptedResponse("Catalog sync queued", job))
	}

	_, err = fmt.Fprintf(out, "Catalog sync of %d product(s) queued (job %s)\n", len(products), job.ID)
	return err
}

// RunListMetrics prints the account's metrics. It calls the marketing API directly.
func RunListMetrics(
	ctx context.Context,
	lister MetricLister,
	logger *slog.Logger,
	out io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	metrics, err := lister.GetMetrics(ctx)
	if err != nil {
		return fmt.Errorf("failed to list metrics: %w", err)
	}

	logger.Debug("metrics listed", slog.Int("count", len(metrics)))

	if format == "json" {
		return writeJSON(out, metrics)
	}

	for _, m := range metrics {
		integration := m.Integration
		if integration == "" {
			integration = "-"
		}
		if _, err := fmt.Fprintf(out, "%s  %-30s %s\n", m.ID, m.Name, integration); err != nil {
			return err
		}
	}
	return nil
}
