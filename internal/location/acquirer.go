package location

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/stream"
)

// Acquirer returns the device position, waiting for the first fix if none is
// known yet.
type Acquirer struct {
	source PositionSource
	logger *slog.Logger
}

func NewAcquirer(source PositionSource, logger *slog.Logger) *Acquirer {
	return &Acquirer{source: source, logger: logger}
}

// CurrentLocation returns the last known fix immediately when there is one
// and otherwise waits for the next update. A failure update is returned as
// *domain.LocationAcquisitionFailure; it is not retried. Updates are left
// running either way.
func (a *Acquirer) CurrentLocation(ctx context.Context) (domain.Fix, error) {
	loc := a.source.Location()

	if current := loc.Value(); current.Phase == domain.LocationLocated {
		a.source.StartUpdating()
		return current.Fix, nil
	}

	a.logger.Debug("no known location, waiting for first fix")
	return stream.AwaitNext(ctx, loc,
		func(l domain.TrackedLocation) (domain.Fix, bool, error) {
			switch l.Phase {
			case domain.LocationLocated:
				return l.Fix, true, nil
			case domain.LocationFailed:
				return domain.Fix{}, true, &domain.LocationAcquisitionFailure{Err: l.Err}
			default:
				return domain.Fix{}, false, nil
			}
		},
		func(resolve stream.Resolver[domain.Fix]) {
			a.source.StartUpdating()
			if current := loc.Value(); current.Phase == domain.LocationLocated {
				resolve(current.Fix, nil)
			}
		},
	)
}
