// Package geo wraps the device location source behind a Provider and adds the
// distance helpers used for nearest-site auto-selection.
package geo

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/Samudera-Biru-Indonesia/Project2-SMT/models"
)

// Typed acquisition failures. Callers branch on these to decide between
// "ask for permission" and "try again later" messaging.
var (
	ErrPermissionDenied = errors.New("geolocation permission denied")
	ErrUnavailable      = errors.New("location information is unavailable")
	ErrTimeout          = errors.New("location request timed out")
)

// AccuracyThreshold is the accuracy (meters) beyond which a fix is considered
// poor enough to warrant one retry.
const AccuracyThreshold = 1000.0

// Provider yields a single best-effort position fix.
type Provider interface {
	CurrentLocation(ctx context.Context) (models.UserLocation, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (models.UserLocation, error)

func (f ProviderFunc) CurrentLocation(ctx context.Context) (models.UserLocation, error) {
	return f(ctx)
}

// Static is a fixed-coordinate Provider for kiosk installations where the
// device never moves.
type Static struct {
	Location models.UserLocation
}

func (s Static) CurrentLocation(_ context.Context) (models.UserLocation, error) {
	loc := s.Location
	if loc.Timestamp.IsZero() {
		loc.Timestamp = time.Now()
	}
	return loc, nil
}

// AcquireFix gets one fix from the provider, retrying exactly once (always
// sequentially, never in parallel) when accuracy is poor. The better of the
// two fixes wins.
func AcquireFix(ctx context.Context, p Provider) (models.UserLocation, error) {
	first, err := p.CurrentLocation(ctx)
	if err != nil {
		return models.UserLocation{}, err
	}

	if first.Accuracy == 0 || first.Accuracy <= AccuracyThreshold {
		return first, nil
	}

	second, err := p.CurrentLocation(ctx)
	if err != nil {
		// Keep the poor but usable first fix.
		return first, nil
	}
	if second.Accuracy != 0 && second.Accuracy < first.Accuracy {
		return second, nil
	}
	return first, nil
}

const earthRadiusKm = 6371.0

// Distance returns the haversine great-circle distance in kilometers.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// NearestPlant picks the plant closest to loc. Plants without coordinates are
// skipped. Returns false when no plant has coordinates.
func NearestPlant(plants []models.Plant, loc models.UserLocation) (models.Plant, float64, bool) {
	var (
		best     models.Plant
		bestDist = math.MaxFloat64
		found    bool
	)
	for _, p := range plants {
		if p.Lat == 0 && p.Long == 0 {
			continue
		}
		d := Distance(loc.Latitude, loc.Longitude, p.Lat, p.Long)
		if d < bestDist {
			best, bestDist, found = p, d, true
		}
	}
	if !found {
		return models.Plant{}, 0, false
	}
	return best, bestDist, true
}
