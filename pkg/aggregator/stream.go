package aggregator

import (
	"canibuy/pkg/models"
	"canibuy/pkg/relevance"
	"context"
	"time"

	"go.uber.org/zap"
)

type EventType string

const (
	EventStatus   EventType = "status"
	EventProducts EventType = "products"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Event is one step of a streamed search.
type Event struct {
	Type   EventType `json:"type"`
	Store  string    `json:"store,omitempty"`
	Status string    `json:"status,omitempty"`
	// Progress is the fraction of sources settled so far.
	Progress float64          `json:"progress"`
	Products []models.Product `json:"products,omitempty"`
	Error    *string          `json:"error,omitempty"`
	Total    int              `json:"total"`
	Success  bool             `json:"success"`
	Cached   bool             `json:"cached,omitempty"`
}

// Stream runs the same search as ScrapeAll and reports each source as soon as it settles.
// emit is only called from the calling goroutine. The last event is complete, or error when
// the request is invalid or ctx ends first.
func (a *Aggregator) Stream(ctx context.Context, req models.SearchRequest, emit func(Event)) {
	if err := req.Validate(); err != nil {
		emit(errorEvent(err.Error()))
		return
	}
	if res, ok := a.cached(ctx, req); ok {
		emit(Event{Type: EventProducts, Products: res.Products, Progress: 1, Total: len(res.Products), Success: res.Success, Cached: true})
		emit(Event{Type: EventComplete, Products: res.Products, Progress: 1, Total: len(res.Products), Error: res.Error, Success: res.Success, Cached: true})
		return
	}

	sources := a.Select(req.Stores)
	if len(sources) == 0 {
		emit(errorEvent("no matching stores"))
		return
	}

	for _, src := range sources {
		emit(Event{Type: EventStatus, Store: src.Name(), Status: StatusStarted})
	}

	start := time.Now()
	terms := relevance.Terms(req.Query)
	slots := make([]settled, len(sources))
	outcomes := a.fanOut(ctx, req, sources)

	for n := 1; n <= len(sources); n++ {
		if err := ctx.Err(); err != nil {
			emit(errorEvent(err.Error()))
			return
		}
		var s settled
		select {
		case s = <-outcomes:
		case <-ctx.Done():
			emit(errorEvent(ctx.Err().Error()))
			return
		}
		slots[s.index] = s
		progress := float64(n) / float64(len(sources))

		status := StatusCompleted
		if !s.result.Success {
			status = StatusFailed
		}
		products, errText := s.contribution(terms)
		ev := Event{Type: EventStatus, Store: s.source.Name(), Status: status, Progress: progress, Total: len(products)}
		if errText != "" {
			ev.Error = &errText
		}
		emit(ev)
		if s.result.Success {
			emit(Event{Type: EventProducts, Store: s.source.Name(), Products: products, Progress: progress, Total: len(products), Success: true})
		}
	}

	res := a.merge(ctx, req, slots)
	a.log.Info("streamed search completed",
		zap.String("query", req.Query),
		zap.Int("sources", len(sources)),
		zap.Int("products", len(res.Products)),
		zap.Duration("elapsed", time.Since(start)),
	)
	emit(Event{Type: EventComplete, Products: res.Products, Progress: 1, Total: len(res.Products), Error: res.Error, Success: res.Success})
}

func errorEvent(msg string) Event {
	return Event{Type: EventError, Error: &msg}
}
