package location

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/nearby-search/internal/domain"
	"github.com/couchcryptid/nearby-search/internal/stream"
)

// Gate resolves location authorization before the position is read.
type Gate struct {
	source AuthorizationSource
	logger *slog.Logger
}

func NewGate(source AuthorizationSource, logger *slog.Logger) *Gate {
	return &Gate{source: source, logger: logger}
}

// EnsureAuthorized returns nil once the application may read the device
// location. While the status is undetermined it prompts and re-evaluates
// after every status change; denial yields *domain.PermissionDenied.
func (g *Gate) EnsureAuthorized(ctx context.Context) error {
	auth := g.source.Authorization()

	for {
		status := auth.Value()
		switch {
		case status.Authorized():
			return nil

		case status == domain.NotDetermined:
			g.logger.Debug("location authorization not determined, prompting")
			_, err := stream.AwaitNext(ctx, auth,
				func(domain.AuthorizationStatus) (struct{}, bool, error) {
					return struct{}{}, true, nil
				},
				func(resolve stream.Resolver[struct{}]) {
					// The status may have moved before we subscribed.
					if auth.Value() != domain.NotDetermined {
						resolve(struct{}{}, nil)
						return
					}
					g.source.RequestPermission()
				},
			)
			if err != nil {
				return fmt.Errorf("await authorization change: %w", err)
			}

		default:
			return &domain.PermissionDenied{
				Status: status,
				Reason: domain.DenialReasonFor(status, g.source.ServicesEnabled()),
			}
		}
	}
}
