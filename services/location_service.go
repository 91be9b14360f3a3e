package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"rescuelink/models"
	"rescuelink/utils"

	"github.com/sirupsen/logrus"
)

// Position is one fix reported by the platform.
type Position struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
}

// PositionProvider is the platform location capability.
type PositionProvider interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (Position, error)
	// Watch streams fixes until ctx is cancelled, then closes both channels.
	Watch(ctx context.Context, opts PositionOptions) (<-chan Position, <-chan error, error)
}

// ErrPositionUnavailable is what providers return when no fix can be produced.
var ErrPositionUnavailable = errors.New("position unavailable")

// StaticPositionProvider reports a fixed coordinate, for example one passed on
// the command line or posted by a browser client.
type StaticPositionProvider struct {
	Latitude  float64
	Longitude float64
	Interval  time.Duration
}

func (p StaticPositionProvider) fix() (Position, error) {
	if !utils.IsValidCoordinate(p.Latitude, p.Longitude) {
		return Position{}, ErrPositionUnavailable
	}
	return Position{Latitude: p.Latitude, Longitude: p.Longitude, Timestamp: time.Now()}, nil
}

func (p StaticPositionProvider) CurrentPosition(ctx context.Context, opts PositionOptions) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}
	return p.fix()
}

func (p StaticPositionProvider) Watch(ctx context.Context, opts PositionOptions) (<-chan Position, <-chan error, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	positions := make(chan Position, 1)
	errs := make(chan error, 1)

	go func() {
		defer close(positions)
		defer close(errs)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			pos, err := p.fix()
			if err != nil {
				select {
				case errs <- err:
				default:
				}
			} else {
				select {
				case positions <- pos:
				default:
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return positions, errs, nil
}

// LocationService runs the geolocation sub-flow used when reporting.
type LocationService struct {
	provider PositionProvider
	geocoder *GeocodeService
	timeout  time.Duration
}

func NewLocationService(provider PositionProvider, geocoder *GeocodeService, timeout time.Duration) *LocationService {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LocationService{provider: provider, geocoder: geocoder, timeout: timeout}
}

// Locate acquires a high accuracy fix within the configured timeout and
// resolves its address.
func (ls *LocationService) Locate(ctx context.Context) (*models.Location, error) {
	if ls.provider == nil {
		return nil, utils.NewGeolocationError("Geolocation is not supported", ErrPositionUnavailable)
	}

	fixCtx, cancel := context.WithTimeout(ctx, ls.timeout)
	defer cancel()

	pos, err := ls.provider.CurrentPosition(fixCtx, PositionOptions{HighAccuracy: true, Timeout: ls.timeout})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, utils.NewGeolocationError("Timeout expired", err)
		}
		return nil, utils.NewGeolocationError(err.Error(), err)
	}

	loc := &models.Location{Latitude: pos.Latitude, Longitude: pos.Longitude}
	if ls.geocoder != nil {
		loc.Address = ls.geocoder.Reverse(ctx, pos.Latitude, pos.Longitude)
	} else {
		loc.Address = utils.FormatCoordinate(pos.Latitude, pos.Longitude)
	}
	return loc, nil
}

// Share starts a location watch. The returned handle must be stopped; Stop is
// idempotent.
func (ls *LocationService) Share(ctx context.Context, onError func(error)) (*LocationShare, error) {
	if ls.provider == nil {
		return nil, utils.NewGeolocationError("Geolocation is not supported", ErrPositionUnavailable)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	positions, errs, err := ls.provider.Watch(watchCtx, PositionOptions{HighAccuracy: true})
	if err != nil {
		cancel()
		return nil, utils.NewGeolocationError(err.Error(), err)
	}

	share := &LocationShare{cancel: cancel, done: make(chan struct{})}
	go share.run(positions, errs, onError)
	return share, nil
}

// LocationShare is a scoped handle on a platform location watch.
type LocationShare struct {
	mu       sync.RWMutex
	latest   *Position
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func (s *LocationShare) run(positions <-chan Position, errs <-chan error, onError func(error)) {
	defer close(s.done)
	for positions != nil || errs != nil {
		select {
		case pos, ok := <-positions:
			if !ok {
				positions = nil
				continue
			}
			s.mu.Lock()
			p := pos
			s.latest = &p
			s.mu.Unlock()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logrus.Debugf("Location watch error: %v", err)
			if onError != nil {
				onError(utils.NewGeolocationError(err.Error(), err))
			}
		}
	}
}

// Latest returns the most recent fix, if any.
func (s *LocationShare) Latest() (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return Position{}, false
	}
	return *s.latest, true
}

// Stop releases the watch and waits for the consumer goroutine to exit.
func (s *LocationShare) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}
