// Package location abstracts GPS sample acquisition. The agent never talks
// to device hardware itself; the mobile shell either reports the fix with
// each request or plugs in its own provider.
package location

import (
	"context"
	"time"

	"github.com/noah-isme/sma-sync-agent/internal/models"
	appErrors "github.com/noah-isme/sma-sync-agent/pkg/errors"
)

// Options bounds an acquisition attempt.
type Options struct {
	Timeout      time.Duration
	HighAccuracy bool
}

// Provider yields the device's current location.
type Provider interface {
	Current(ctx context.Context, opts Options) (models.LocationSample, error)
}

// Func adapts a plain function into a Provider.
type Func func(ctx context.Context, opts Options) (models.LocationSample, error)

// Current implements Provider.
func (f Func) Current(ctx context.Context, opts Options) (models.LocationSample, error) {
	return f(ctx, opts)
}

// FromSample returns a Provider that yields a fix the device already
// reported. Freshness is still enforced downstream by the geofence gates.
func FromSample(sample models.LocationSample) Provider {
	return Func(func(ctx context.Context, opts Options) (models.LocationSample, error) {
		return sample, nil
	})
}

// Unavailable returns a Provider that always fails acquisition. It is the
// fallback when a request carries no reported fix and no device provider
// is wired.
func Unavailable() Provider {
	return Func(func(ctx context.Context, opts Options) (models.LocationSample, error) {
		return models.LocationSample{}, appErrors.ErrLocationUnavailable
	})
}
