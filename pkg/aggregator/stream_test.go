package aggregator

import (
	"canibuy/pkg/cache"
	"canibuy/pkg/models"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func collect(agg *Aggregator, req models.SearchRequest) []Event {
	var events []Event
	agg.Stream(context.Background(), req, func(e Event) { events = append(events, e) })
	return events
}

func TestStream(t *testing.T) {
	slow := &fakeSource{key: "slow", name: "Slow", scrape: func(context.Context, models.SearchRequest) models.ScrapingResult {
		time.Sleep(30 * time.Millisecond)
		return models.Success([]models.Product{product("Smart TV 43 inch", 2300)})
	}}
	agg := New(sources(
		slow,
		returning("fast", "Fast", product("Smart TV 32 inch", 1400)),
		failing("broken", "Broken", "status 503"),
	), nil, DefaultOptions(), zap.NewNop(), nil)

	events := collect(agg, models.SearchRequest{Query: "smart tv"})

	require.Len(t, events, 3+3+2+1)
	for _, e := range events[:3] {
		assert.Equal(t, EventStatus, e.Type)
		assert.Equal(t, StatusStarted, e.Status)
		assert.Zero(t, e.Progress)
	}

	var settledOrder []string
	var lastProgress float64
	for _, e := range events[3:8] {
		switch e.Type {
		case EventStatus:
			settledOrder = append(settledOrder, e.Store)
			assert.Greater(t, e.Progress, lastProgress)
			lastProgress = e.Progress
			if e.Store == "Broken" {
				assert.Equal(t, StatusFailed, e.Status)
				require.NotNil(t, e.Error)
				assert.Equal(t, "Broken: status 503", *e.Error)
			} else {
				assert.Equal(t, StatusCompleted, e.Status)
			}
		case EventProducts:
			assert.Len(t, e.Products, 1)
		default:
			t.Fatalf("unexpected %s event before completion", e.Type)
		}
	}
	assert.Equal(t, "Slow", settledOrder[2], "the slowest source settles last")
	assert.Equal(t, 1.0, lastProgress)

	done := events[len(events)-1]
	assert.Equal(t, EventComplete, done.Type)
	assert.True(t, done.Success)
	assert.Equal(t, 2, done.Total)
	assert.Equal(t, []string{"Smart TV 32 inch", "Smart TV 43 inch"}, titles(done.Products))
	require.NotNil(t, done.Error)
	assert.Equal(t, "Broken: status 503", *done.Error)
}

func TestStream_CacheHit(t *testing.T) {
	src := returning("a", "Alpha", product("Blender 1.5L", 450))
	agg := New(sources(src), cache.New(cache.NewMemory(), time.Minute), DefaultOptions(), zap.NewNop(), nil)
	defer agg.Close()

	agg.ScrapeAll(context.Background(), models.SearchRequest{Query: "blender"})
	events := collect(agg, models.SearchRequest{Query: "Blender"})

	require.Len(t, events, 2)
	assert.Equal(t, EventProducts, events[0].Type)
	assert.True(t, events[0].Cached)
	assert.Len(t, events[0].Products, 1)
	assert.Equal(t, EventComplete, events[1].Type)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestStream_InvalidRequest(t *testing.T) {
	agg := New(sources(returning("a", "Alpha")), nil, DefaultOptions(), zap.NewNop(), nil)

	events := collect(agg, models.SearchRequest{Query: "tv", MinBudget: models.Float(500), MaxBudget: models.Float(100)})
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Contains(t, *events[0].Error, "invalid budget")
}

func TestStream_ClientGone(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	stuck := &fakeSource{key: "stuck", name: "Stuck", scrape: func(ctx context.Context, req models.SearchRequest) models.ScrapingResult {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return models.Failure("cancelled")
	}}
	agg := New(sources(stuck), nil, DefaultOptions(), zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	var events []Event
	agg.Stream(ctx, models.SearchRequest{Query: "tv"}, func(e Event) {
		events = append(events, e)
		if e.Status == StatusStarted {
			cancel()
		}
	})

	last := events[len(events)-1]
	assert.Equal(t, EventError, last.Type)
}
