package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"songrelay/core/musicapp"
	"songrelay/logger"
	"songrelay/model"
)

// Deliverer forwards a batch of tracks to the music app.
type Deliverer interface {
	Deliver(ctx context.Context, tracks []model.Track) error
}

// Service relays track batches from agents to the music app.
type Service struct {
	deliverer Deliverer
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the response timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a relay that forwards through d.
func NewService(d Deliverer, opts ...Option) *Service {
	s := &Service{deliverer: d, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SendTracks forwards tracks in one call and summarises the result.
// The batch is all-or-nothing; an empty batch is forwarded as well.
func (s *Service) SendTracks(ctx context.Context, tracks []model.Track) (model.SendTracksResponse, error) {
	if s.deliverer == nil {
		return model.SendTracksResponse{}, errors.New("music app client is not configured")
	}

	start := time.Now()
	if err := s.deliverer.Deliver(ctx, tracks); err != nil {
		logger.Error("failed to relay tracks",
			logger.Int("tracks", len(tracks)),
			logger.Duration("elapsed", time.Since(start)),
			logger.ErrorField(err))
		return model.SendTracksResponse{}, err
	}

	logger.Info("relayed tracks to music app",
		logger.Int("tracks", len(tracks)),
		logger.Duration("elapsed", time.Since(start)))

	return model.SendTracksResponse{
		Success:    true,
		Message:    fmt.Sprintf("Successfully sent %d tracks to your music app", len(tracks)),
		TracksSent: len(tracks),
		Timestamp:  model.FormatTimestamp(s.now()),
	}, nil
}

// Describe turns a SendTracks error into the message shown to the caller.
func Describe(err error) string {
	var derr *musicapp.DeliveryError
	if errors.As(err, &derr) {
		return "Failed to send tracks to music app: " + err.Error()
	}
	return "Unexpected error: " + err.Error()
}
