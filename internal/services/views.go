package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inkpress/internal/store"
)

const (
	viewQueueSize     = 1000
	viewBatchSize     = 50
	viewFlushInterval = 500 * time.Millisecond
)

// ViewRecorder counts post views in the background. Views of the same post
// are coalesced and written as one increment per flush. Counting is best
// effort: write failures are logged and the views are dropped.
type ViewRecorder struct {
	store store.Posts
	log   zerolog.Logger

	queue   chan string // posts that went from zero to one pending view
	mu      sync.Mutex
	pending map[string]int
}

func NewViewRecorder(st store.Posts, log zerolog.Logger) *ViewRecorder {
	return &ViewRecorder{
		store:   st,
		log:     log.With().Str("service", "views").Logger(),
		queue:   make(chan string, viewQueueSize),
		pending: make(map[string]int),
	}
}

// Record counts one view of postID. It never blocks.
func (r *ViewRecorder) Record(postID string) {
	r.mu.Lock()
	r.pending[postID]++
	first := r.pending[postID] == 1
	r.mu.Unlock()

	if !first {
		return
	}
	select {
	case r.queue <- postID:
	default:
		// the periodic flush still picks the post up
	}
}

// Run batches queued posts until ctx is done, then flushes what is left.
func (r *ViewRecorder) Run(ctx context.Context) {
	batch := make([]string, 0, viewBatchSize)
	ticker := time.NewTicker(viewFlushInterval)
	defer ticker.Stop()

	for {
		select {
		case postID := <-r.queue:
			batch = append(batch, postID)
			if len(batch) >= viewBatchSize {
				r.flushPosts(context.Background(), batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			batch = batch[:0]
			r.Flush(context.Background())
		case <-ctx.Done():
			r.Flush(context.Background())
			return
		}
	}
}

// Flush writes every pending view now.
func (r *ViewRecorder) Flush(ctx context.Context) {
drain:
	for {
		select {
		case <-r.queue:
		default:
			break drain
		}
	}

	r.mu.Lock()
	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	r.flushPosts(ctx, ids)
}

func (r *ViewRecorder) flushPosts(ctx context.Context, ids []string) {
	for _, id := range ids {
		r.mu.Lock()
		n := r.pending[id]
		delete(r.pending, id)
		r.mu.Unlock()

		if n == 0 {
			continue
		}
		if err := r.store.IncrementPostCounter(ctx, id, store.CounterViews, n); err != nil {
			r.log.Warn().Err(err).Str("post_id", id).Int("views", n).Msg("record views")
		}
	}
}
