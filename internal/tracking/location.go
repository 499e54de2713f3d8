// Package tracking acquires driver positions and derives the two live
// signals the notification pipeline consumes: route deviation and
// proximity to the next stop.
package tracking

import (
	"context"
	"log"
	"sync"
	"time"

	"vantrack-backend/internal/models"
	"vantrack-backend/internal/scheduler"
)

// PositionProvider produces the driver's current position. The device
// sensor implements this; tests and the synthetic fallback substitute it.
type PositionProvider interface {
	Position(ctx context.Context) (models.RouteLocation, error)
}

// Sink receives every accepted location reading.
type Sink func(models.RouteLocation)

const (
	defaultHistorySize = 50
	defaultFixTimeout  = 3 * time.Second
)

// LocationSource polls the position provider on a fixed cadence for the
// lifetime of one active route. When the provider fails, a deterministic
// synthetic track substitutes so downstream components always get a value.
type LocationSource struct {
	sched    *scheduler.Scheduler
	provider PositionProvider

	mu          sync.Mutex
	fallback    *SyntheticTrack
	history     []models.RouteLocation
	historySize int
	bandStats   map[models.AccuracyBand]int
	sinks       []Sink
	timerKey    string
	running     bool

	fixTimeout time.Duration
}

// NewLocationSource builds a source over the given provider. provider may
// be nil, in which case every tick comes from the synthetic track.
func NewLocationSource(sched *scheduler.Scheduler, provider PositionProvider) *LocationSource {
	return &LocationSource{
		sched:       sched,
		provider:    provider,
		historySize: defaultHistorySize,
		bandStats:   make(map[models.AccuracyBand]int),
		fixTimeout:  defaultFixTimeout,
	}
}

// AddSink registers a consumer for future readings.
func (s *LocationSource) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Start begins emitting on the given interval. Starting while a prior
// route's timer is live cancels that timer first; ticks never interleave
// across route boundaries. path seeds the synthetic fallback track.
func (s *LocationSource) Start(driverID string, path []models.PathPoint, interval time.Duration) {
	s.mu.Lock()
	if s.running {
		s.sched.Cancel(s.timerKey)
	}
	s.timerKey = "location:" + driverID
	s.fallback = NewSyntheticTrack(path)
	s.history = nil
	s.bandStats = make(map[models.AccuracyBand]int)
	s.running = true
	key := s.timerKey
	s.mu.Unlock()

	log.Printf("📍 Location source started for driver %s (interval %s)", driverID, interval)
	s.sched.Every(key, interval, s.tick)
}

// Stop ends emission. Safe to call repeatedly.
func (s *LocationSource) Stop() {
	s.mu.Lock()
	key := s.timerKey
	running := s.running
	s.running = false
	s.mu.Unlock()

	if running {
		s.sched.Cancel(key)
		log.Printf("📍 Location source stopped (%s)", key)
	}
}

// Current returns the most recent reading, or nil before the first tick.
func (s *LocationSource) Current() *models.RouteLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return nil
	}
	loc := s.history[len(s.history)-1]
	return &loc
}

// History returns the bounded reading history, oldest first.
func (s *LocationSource) History() []models.RouteLocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RouteLocation, len(s.history))
	copy(out, s.history)
	return out
}

// BandStats returns per-accuracy-band reading counts. Diagnostic only.
func (s *LocationSource) BandStats() map[models.AccuracyBand]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[models.AccuracyBand]int, len(s.bandStats))
	for band, n := range s.bandStats {
		out[band] = n
	}
	return out
}

// Ingest feeds an externally acquired reading (e.g. the driver device
// posting its own fix) through the same history/stats/sink path a polled
// reading takes.
func (s *LocationSource) Ingest(loc models.RouteLocation) {
	s.accept(loc)
}

func (s *LocationSource) tick() {
	loc, err := s.acquire()
	if err != nil {
		// Sensor failure is recovered locally, never surfaced.
		s.mu.Lock()
		loc = s.fallback.Next()
		s.mu.Unlock()
	}
	s.accept(loc)
}

func (s *LocationSource) acquire() (models.RouteLocation, error) {
	s.mu.Lock()
	provider := s.provider
	timeout := s.fixTimeout
	s.mu.Unlock()

	if provider == nil {
		s.mu.Lock()
		loc := s.fallback.Next()
		s.mu.Unlock()
		return loc, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return provider.Position(ctx)
}

func (s *LocationSource) accept(loc models.RouteLocation) {
	if loc.Timestamp == 0 {
		loc.Timestamp = time.Now().Unix()
	}

	s.mu.Lock()
	s.history = append(s.history, loc)
	if len(s.history) > s.historySize {
		s.history = s.history[len(s.history)-s.historySize:]
	}
	s.bandStats[loc.Band()]++
	sinks := make([]Sink, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.Unlock()

	for _, sink := range sinks {
		sink(loc)
	}
}

// SyntheticTrack walks a computed path point by point, looping at the end,
// so the pipeline keeps receiving plausible positions without a sensor.
type SyntheticTrack struct {
	points []models.PathPoint
	index  int
}

// NewSyntheticTrack builds a track over path. An empty path pins the track
// to the origin.
func NewSyntheticTrack(path []models.PathPoint) *SyntheticTrack {
	return &SyntheticTrack{points: path}
}

// Next returns the next position on the track. Deterministic: the same
// path always yields the same sequence.
func (t *SyntheticTrack) Next() models.RouteLocation {
	if len(t.points) == 0 {
		acc := 30.0
		return models.RouteLocation{Accuracy: &acc, Timestamp: time.Now().Unix()}
	}
	pt := t.points[t.index]
	t.index = (t.index + 1) % len(t.points)
	acc := 15.0 // synthetic fixes report a fixed medium-band accuracy
	return models.RouteLocation{
		Latitude:  pt.Latitude,
		Longitude: pt.Longitude,
		Accuracy:  &acc,
		Timestamp: time.Now().Unix(),
	}
}
