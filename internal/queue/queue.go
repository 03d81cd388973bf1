package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"novelhub/internal/source"
	"novelhub/pkg/models"
)

// ChapterStore is the slice of the chapter store the queue needs.
type ChapterStore interface {
	Chapters(ctx context.Context, novelURL string) ([]models.Chapter, error)
	MergeRemoteChapters(ctx context.Context, novelURL string, discovered []models.Chapter) ([]models.Chapter, error)
	IsChapterCached(ctx context.Context, chapterURL string) (bool, error)
	CacheChapterContent(ctx context.Context, novelURL string, ch models.Chapter, content string) error
	CacheCounts(ctx context.Context, novelURL string) (cached, total int, err error)
}

// Resolver maps a novel URL onto the adapter that can fetch it.
type Resolver interface {
	Resolve(rawURL string) source.Source
}

type task struct {
	id       string
	novelURL string
	title    string
}

// Queue caches whole novels in the background, one at a time, in chapter
// order. Enqueueing the same novel twice while it is still pending is a
// no-op that returns the existing task id. Work only proceeds while the
// app-active and upstream-reachable gates are both open; a novel
// interrupted by a closing gate goes back to the front of the line and
// resumes from its first uncached chapter.
type Queue struct {
	store    ChapterStore
	resolver Resolver
	pub      Publisher
	interval time.Duration

	mu        sync.Mutex
	pending   []task
	queued    map[string]string // novel URL -> task id
	appActive bool
	upstream  bool
	running   bool

	limitMu  sync.Mutex
	limiters map[string]*source.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// New builds a queue; interval spaces consecutive chapter fetches against
// the same site. Call Start to launch the worker.
func New(store ChapterStore, resolver Resolver, pub Publisher, interval time.Duration) *Queue {
	if pub == nil {
		pub = NopPublisher{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		ctx:       ctx,
		cancel:    cancel,
		store:     store,
		resolver:  resolver,
		pub:       pub,
		interval:  interval,
		queued:    make(map[string]string),
		appActive: true,
		upstream:  true,
		limiters:  make(map[string]*source.Limiter),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the single worker goroutine.
func (q *Queue) Start() {
	go q.run()
}

// Close stops the worker and waits for it to exit. Cancelling the worker
// context aborts an in-flight fetch and any limiter wait, so shutdown never
// waits out a backoff interval. The pending list is persisted state in the
// sense that counts are derived from the store, so dropping it on shutdown
// loses no progress.
func (q *Queue) Close() {
	q.cancel()
	close(q.stop)
	<-q.done
}

// Enqueue schedules a novel for full caching. Returns the task id and
// whether a new task was created.
func (q *Queue) Enqueue(novelURL, title string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id, ok := q.queued[novelURL]; ok {
		return id, false
	}
	id := uuid.NewString()
	q.queued[novelURL] = id
	q.pending = append(q.pending, task{id: id, novelURL: novelURL, title: title})
	q.notify()
	return id, true
}

// SetAppActive opens or closes the foreground gate.
func (q *Queue) SetAppActive(active bool) {
	q.mu.Lock()
	q.appActive = active
	if active {
		q.notify()
	}
	q.mu.Unlock()
}

// SetUpstreamReachable opens or closes the connectivity gate.
func (q *Queue) SetUpstreamReachable(reachable bool) {
	q.mu.Lock()
	q.upstream = reachable
	if reachable {
		q.notify()
	}
	q.mu.Unlock()
}

// State reports ("running"|"idle", pending task count).
func (q *Queue) State() (string, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return "running", len(q.pending)
	}
	return "idle", len(q.pending)
}

// notify wakes the worker; callers hold q.mu.
func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for {
		t, ok := q.next()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.stop:
				return
			}
		}
		// a task parked by a closing stop channel would otherwise be
		// popped again immediately; check stop before touching it
		select {
		case <-q.stop:
			q.requeueFront(t)
			return
		default:
		}
		q.process(t)
	}
}

// next pops the head of the line when both gates are open.
func (q *Queue) next() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.appActive || !q.upstream || len(q.pending) == 0 {
		q.running = false
		return task{}, false
	}
	t := q.pending[0]
	q.pending = q.pending[1:]
	q.running = true
	return t, true
}

// gateOpen is checked between chapters so a backgrounded app stops fetching
// promptly instead of finishing the whole novel.
func (q *Queue) gateOpen() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.appActive && q.upstream
}

// requeueFront puts an interrupted task back at the head of the line.
func (q *Queue) requeueFront(t task) {
	q.mu.Lock()
	q.pending = append([]task{t}, q.pending...)
	q.running = false
	q.mu.Unlock()
}

// finish removes the task from the dedupe set.
func (q *Queue) finish(t task) {
	q.mu.Lock()
	delete(q.queued, t.novelURL)
	q.running = false
	q.mu.Unlock()
}

// limiterFor returns the shared per-site limiter for an adapter.
func (q *Queue) limiterFor(name string) *source.Limiter {
	q.limitMu.Lock()
	defer q.limitMu.Unlock()
	l, ok := q.limiters[name]
	if !ok {
		l = source.NewLimiter(q.interval)
		q.limiters[name] = l
	}
	return l
}

func (q *Queue) process(t task) {
	ctx := q.ctx

	chapters, err := q.store.Chapters(ctx, t.novelURL)
	if err != nil {
		log.Printf("[queue] load chapters %s: %v", t.novelURL, err)
		q.finish(t)
		return
	}

	src := q.resolver.Resolve(t.novelURL)

	// nothing persisted yet: discover the list first so the task has a
	// stable total to report against
	if len(chapters) == 0 {
		discovered, err := src.GetChapterList(ctx, t.novelURL)
		if err != nil || len(discovered) == 0 {
			log.Printf("[queue] discover %s via %s: %v (%d chapters)", t.novelURL, src.Name(), err, len(discovered))
			q.finish(t)
			return
		}
		chapters, err = q.store.MergeRemoteChapters(ctx, t.novelURL, discovered)
		if err != nil {
			log.Printf("[queue] merge %s: %v", t.novelURL, err)
			q.finish(t)
			return
		}
	}

	limiter := q.limiterFor(src.Name())

	for _, ch := range chapters {
		if !q.gateOpen() {
			q.requeueFront(t)
			return
		}
		select {
		case <-q.stop:
			q.requeueFront(t)
			return
		default:
		}

		cached, err := q.store.IsChapterCached(ctx, ch.URL)
		if err != nil {
			log.Printf("[queue] cache check %s: %v", ch.URL, err)
			continue
		}
		if cached || ch.IsUserInserted {
			continue
		}

		if err := limiter.Acquire(ctx); err != nil {
			q.requeueFront(t)
			return
		}

		cc, err := src.GetChapterContent(ctx, ch.URL)
		if err != nil {
			if ctx.Err() != nil {
				q.requeueFront(t)
				return
			}
			// a failed chapter must not sink the rest of the novel
			log.Printf("[queue] fetch %q (%s): %v", ch.Title, ch.URL, err)
			continue
		}
		if err := q.store.CacheChapterContent(ctx, t.novelURL, ch, cc.Content); err != nil {
			log.Printf("[queue] persist %q: %v", ch.Title, err)
			continue
		}

		q.publishProgress(ctx, EventCacheProgress, t)
	}

	q.publishProgress(ctx, EventCacheDone, t)
	q.finish(t)
}

func (q *Queue) publishProgress(ctx context.Context, typ string, t task) {
	cached, total, err := q.store.CacheCounts(ctx, t.novelURL)
	if err != nil {
		log.Printf("[queue] counts %s: %v", t.novelURL, err)
		return
	}
	q.pub.Publish(ProgressEvent{
		Type:           typ,
		TaskID:         t.id,
		NovelURL:       t.novelURL,
		NovelTitle:     t.title,
		CachedChapters: cached,
		TotalChapters:  total,
		At:             time.Now().UTC(),
	})
}
