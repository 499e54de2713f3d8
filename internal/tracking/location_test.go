package tracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vantrack-backend/internal/models"
	"vantrack-backend/internal/scheduler"
)

type fixedProvider struct {
	loc models.RouteLocation
	err error
}

func (p fixedProvider) Position(ctx context.Context) (models.RouteLocation, error) {
	return p.loc, p.err
}

func testPath() []models.PathPoint {
	return []models.PathPoint{
		{Latitude: -23.5489, Longitude: -46.6388},
		{Latitude: -23.5500, Longitude: -46.6400},
		{Latitude: -23.5510, Longitude: -46.6410},
	}
}

func TestSyntheticTrack_LoopsOverPath(t *testing.T) {
	track := NewSyntheticTrack(testPath())

	first := track.Next()
	second := track.Next()
	third := track.Next()
	wrapped := track.Next()

	assert.Equal(t, -23.5489, first.Latitude)
	assert.Equal(t, -23.5500, second.Latitude)
	assert.Equal(t, -23.5510, third.Latitude)
	assert.Equal(t, first.Latitude, wrapped.Latitude)
	require.NotNil(t, first.Accuracy)
	assert.Equal(t, models.AccuracyMedium, first.Band())
}

func TestSyntheticTrack_EmptyPathPinsToOrigin(t *testing.T) {
	track := NewSyntheticTrack(nil)

	loc := track.Next()
	assert.Zero(t, loc.Latitude)
	assert.Zero(t, loc.Longitude)
	require.NotNil(t, loc.Accuracy)
	assert.Equal(t, models.AccuracyMedium, loc.Band())
}

func TestLocationSource_IngestFeedsSinks(t *testing.T) {
	sched := scheduler.New()
	defer sched.Stop()
	src := NewLocationSource(sched, nil)

	var got []models.RouteLocation
	src.AddSink(func(loc models.RouteLocation) { got = append(got, loc) })

	acc := 5.0
	src.Ingest(models.RouteLocation{Latitude: 1, Longitude: 2, Accuracy: &acc})

	require.Len(t, got, 1)
	assert.Equal(t, 1.0, got[0].Latitude)
	assert.NotZero(t, got[0].Timestamp)

	cur := src.Current()
	require.NotNil(t, cur)
	assert.Equal(t, 1.0, cur.Latitude)
}

func TestLocationSource_HistoryIsBounded(t *testing.T) {
	sched := scheduler.New()
	defer sched.Stop()
	src := NewLocationSource(sched, nil)
	src.historySize = 5

	for i := 0; i < 12; i++ {
		src.Ingest(models.RouteLocation{Latitude: float64(i), Timestamp: int64(i + 1)})
	}

	hist := src.History()
	require.Len(t, hist, 5)
	assert.Equal(t, 7.0, hist[0].Latitude)
	assert.Equal(t, 11.0, hist[4].Latitude)
}

func TestLocationSource_BandStats(t *testing.T) {
	sched := scheduler.New()
	defer sched.Stop()
	src := NewLocationSource(sched, nil)

	high, medium := 5.0, 20.0
	src.Ingest(models.RouteLocation{Accuracy: &high, Timestamp: 1})
	src.Ingest(models.RouteLocation{Accuracy: &medium, Timestamp: 2})
	src.Ingest(models.RouteLocation{Timestamp: 3}) // no accuracy reported

	stats := src.BandStats()
	assert.Equal(t, 1, stats[models.AccuracyHigh])
	assert.Equal(t, 1, stats[models.AccuracyMedium])
	assert.Equal(t, 1, stats[models.AccuracyLow])
}

func TestLocationSource_PollsProvider(t *testing.T) {
	sched := scheduler.New()
	defer sched.Stop()

	acc := 8.0
	src := NewLocationSource(sched, fixedProvider{
		loc: models.RouteLocation{Latitude: 10, Longitude: 20, Accuracy: &acc},
	})

	src.Start("driver-1", testPath(), 10*time.Millisecond)
	defer src.Stop()

	require.Eventually(t, func() bool { return src.Current() != nil },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 10.0, src.Current().Latitude)
}

func TestLocationSource_ProviderFailureFallsBackToSyntheticTrack(t *testing.T) {
	sched := scheduler.New()
	defer sched.Stop()

	src := NewLocationSource(sched, fixedProvider{err: errors.New("no gps fix")})
	src.Start("driver-1", testPath(), 10*time.Millisecond)
	defer src.Stop()

	require.Eventually(t, func() bool { return src.Current() != nil },
		time.Second, 5*time.Millisecond)

	// Synthetic positions come from the computed path.
	cur := src.Current()
	assert.InDelta(t, -23.55, cur.Latitude, 0.01)
	assert.Equal(t, models.AccuracyMedium, cur.Band())
}

func TestLocationSource_RestartResetsHistory(t *testing.T) {
	sched := scheduler.New()
	defer sched.Stop()
	src := NewLocationSource(sched, nil)

	src.Start("driver-1", testPath(), time.Hour)
	src.Ingest(models.RouteLocation{Latitude: 1, Timestamp: 1})
	require.Len(t, src.History(), 1)

	src.Start("driver-1", testPath(), time.Hour)
	assert.Empty(t, src.History())
	src.Stop()
}
