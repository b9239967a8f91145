package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/nearby-search/internal/domain"
)

// Authorizer resolves location permission.
type Authorizer interface {
	EnsureAuthorized(ctx context.Context) error
}

// Locator returns the device position.
type Locator interface {
	CurrentLocation(ctx context.Context) (domain.Fix, error)
}

// NearbyFinder chains permission, position and the search backend.
type NearbyFinder struct {
	authorizer Authorizer
	locator    Locator
	backend    domain.SearchBackend
	logger     *slog.Logger
}

func NewNearbyFinder(authorizer Authorizer, locator Locator, backend domain.SearchBackend, logger *slog.Logger) *NearbyFinder {
	return &NearbyFinder{
		authorizer: authorizer,
		locator:    locator,
		backend:    backend,
		logger:     logger,
	}
}

// FindNearby searches around the current device position. Backend errors are
// returned as *domain.SearchBackendFailure; permission and location errors
// pass through unchanged.
func (f *NearbyFinder) FindNearby(ctx context.Context, terms *string) (domain.SearchResults, error) {
	if err := f.authorizer.EnsureAuthorized(ctx); err != nil {
		return domain.SearchResults{}, err
	}
	f.logger.Debug("location permission obtained")

	fix, err := f.locator.CurrentLocation(ctx)
	if err != nil {
		return domain.SearchResults{}, err
	}
	f.logger.Debug("location obtained", "coordinates", fix.Coordinates.String(), "accuracy", fix.Accuracy)

	results, err := f.backend.PerformSearch(ctx, fix.Coordinates, terms)
	if err != nil {
		var failure *domain.SearchBackendFailure
		if !errors.As(err, &failure) {
			err = &domain.SearchBackendFailure{Err: err}
		}
		return domain.SearchResults{}, err
	}

	results.Origin = fix
	results.Terms = domain.CloneTerms(terms)
	f.logger.Debug("search results obtained", "terms", domain.FormatTerms(terms), "count", len(results.Restaurants))
	return results, nil
}
