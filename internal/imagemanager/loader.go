package imagemanager

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"photoalbum/internal/backgroundtask"
	"photoalbum/internal/filesystem"
	"photoalbum/internal/logging"
	"photoalbum/internal/media"
	"photoalbum/internal/mediatypes"
	"photoalbum/internal/memory"
	"photoalbum/internal/metrics"
	"photoalbum/internal/workers"
)

var log = logging.For("loader")

// ErrClosed is returned by Run once the loader has been closed.
var ErrClosed = errors.New("loader closed")

// Decoder turns a still image file into a scaled, rotated image and reports
// its full size.
type Decoder interface {
	Decode(ctx context.Context, path string, size, angle int) (image.Image, image.Point, error)
}

// VideoJobs accepts video thumbnail jobs. *backgroundtask.Scheduler
// implements it.
type VideoJobs interface {
	AddJob(j *backgroundtask.Job, p backgroundtask.Priority) error
	CancelWhere(owner any, match func(*backgroundtask.Job) bool) []*backgroundtask.Job
}

// LoaderConfig wires an AsyncLoader.
type LoaderConfig struct {
	Decoder Decoder
	// Cache receives thumbnails. Optional.
	Cache *ThumbnailCache
	// Videos serves video requests. Nil when no extractor is available, in
	// which case video requests are dropped.
	Videos VideoJobs
	// Workers defaults to workers.ForThumbnails().
	Workers int
	// Memory pauses decoding under memory pressure. Optional.
	Memory *memory.Monitor
	Retry  filesystem.RetryConfig
}

// AsyncLoader accepts image requests, decodes them on a worker pool and
// delivers results on the goroutine that calls Run or ProcessEvents.
type AsyncLoader struct {
	decoder Decoder
	cache   *ThumbnailCache
	videos  VideoJobs
	monitor *memory.Monitor
	retry   filesystem.RetryConfig

	queue   *RequestQueue
	mailbox *mailbox
	workers int
	busy    atomic.Int32

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
}

// NewAsyncLoader creates the loader and starts its decode workers.
func NewAsyncLoader(cfg LoaderConfig) *AsyncLoader {
	n := cfg.Workers
	if n <= 0 {
		n = workers.ForThumbnails()
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialBackoff == 0 {
		retry = filesystem.DefaultRetryConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &AsyncLoader{
		decoder: cfg.Decoder,
		cache:   cfg.Cache,
		videos:  cfg.Videos,
		monitor: cfg.Memory,
		retry:   retry,
		queue:   NewRequestQueue(),
		mailbox: newMailbox(),
		workers: n,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	for i := 0; i < n; i++ {
		l.wg.Add(1)
		go l.worker(i)
	}
	metrics.DecodeWorkers.Set(float64(n))
	log.Info("started %d decode workers (videos enabled: %v)", n, l.videos != nil)
	return l
}

// NewClient registers c and returns its handle.
func (l *AsyncLoader) NewClient(c ImageClient) *ClientHandle {
	h := &ClientHandle{client: c, loader: l}
	h.alive.Store(true)
	return h
}

// Load submits req. It returns false when the request was dropped: the
// file is missing, it is a video and no extractor is available, or an
// equivalent request is already under way. Dropped requests get no
// callback.
func (l *AsyncLoader) Load(req *ImageRequest) bool {
	req.frozen.Store(true)

	kind := "image"
	if mediatypes.IsVideo(req.fileName) {
		kind = "video"
	}

	if !req.clientAlive() {
		return false
	}

	info, ok, err := filesystem.StatRegular(req.fileName, l.retry)
	if err != nil {
		log.Warn("stat %s: %v", req.fileName, err)
		metrics.LoaderRequestsTotal.WithLabelValues(kind, "error").Inc()
		return false
	}
	if !ok {
		log.Debug("dropping request for missing file %s", req.fileName)
		metrics.LoaderRequestsTotal.WithLabelValues(kind, "missing").Inc()
		return false
	}
	req.identity = mediatypes.NewFileIdentity(req.fileName, info)

	if kind == "video" {
		return l.loadVideo(req)
	}

	if !l.queue.AddRequest(req) {
		metrics.LoaderRequestsTotal.WithLabelValues(kind, "duplicate").Inc()
		return false
	}
	metrics.LoaderRequestsTotal.WithLabelValues(kind, "queued").Inc()
	return true
}

func (l *AsyncLoader) loadVideo(req *ImageRequest) bool {
	if l.videos == nil {
		log.Debug("no video extractor, dropping %s", req.fileName)
		metrics.LoaderRequestsTotal.WithLabelValues("video", "no_extractor").Inc()
		return false
	}
	if !l.queue.Claim(req) {
		metrics.LoaderRequestsTotal.WithLabelValues("video", "duplicate").Inc()
		return false
	}

	var owner any
	if req.client != nil {
		owner = req.client
	}
	job := backgroundtask.NewVideoThumbnailRequestJob(backgroundtask.ThumbnailRequest{
		Path:       req.fileName,
		Size:       req.size,
		Angle:      req.angle,
		Owner:      owner,
		Payload:    req,
		OnComplete: l.videoDone,
	})

	priority := backgroundtask.BackgroundVideoThumbnailRequest
	if req.priority < ThumbnailInvisible {
		priority = backgroundtask.ForegroundThumbnailRequest
	}
	if err := l.videos.AddJob(job, priority); err != nil {
		log.Warn("queue video job for %s: %v", req.fileName, err)
		l.queue.Finish(req)
		metrics.LoaderRequestsTotal.WithLabelValues("video", "error").Inc()
		return false
	}
	metrics.LoaderRequestsTotal.WithLabelValues("video", "queued").Inc()
	return true
}

// videoDone runs on a scheduler goroutine.
func (l *AsyncLoader) videoDone(j *backgroundtask.Job) {
	req, ok := j.Payload().(*ImageRequest)
	if !ok {
		return
	}
	if j.Outcome() == backgroundtask.Cancelled {
		l.queue.Finish(req)
		return
	}
	if err := j.Err(); err != nil {
		log.Warn("video thumbnail for %s failed: %v", req.fileName, err)
	}
	img, fullSize := j.Image()
	l.mailbox.post(message{
		kind:     msgCompleted,
		req:      req,
		image:    img,
		fullSize: fullSize,
		loadedOK: j.Outcome() == backgroundtask.Succeeded && img != nil,
	})
}

// Stop cancels the client's pending requests and video jobs. Requests
// already being decoded finish, but their results are discarded.
func (l *AsyncLoader) Stop(client *ClientHandle, action StopAction) {
	removed := l.queue.CancelRequests(client, action)

	if l.videos != nil && client != nil {
		jobs := l.videos.CancelWhere(client, func(j *backgroundtask.Job) bool {
			if action&StopOnlyNonPriorityLoads == 0 {
				return true
			}
			req, ok := j.Payload().(*ImageRequest)
			return ok && req.priority > ThumbnailVisible
		})
		for _, j := range jobs {
			if req, ok := j.Payload().(*ImageRequest); ok {
				removed = append(removed, req)
			}
		}
	}

	if len(removed) == 0 {
		return
	}
	metrics.CancelledRequestsTotal.Add(float64(len(removed)))
	log.Debug("stopped %d requests", len(removed))

	if action&NotifyCancelled != 0 {
		for _, req := range removed {
			l.mailbox.post(message{kind: msgCancelled, req: req})
		}
	}
}

func (l *AsyncLoader) worker(id int) {
	defer l.wg.Done()
	for {
		req, ok := l.queue.WaitNext()
		if !ok {
			log.Debug("decode worker %d exiting", id)
			return
		}
		if !l.monitor.WaitIfPaused(l.ctx) {
			l.queue.Finish(req)
			return
		}
		if !l.queue.IsRequestStillValid(req) {
			l.queue.Finish(req)
			continue
		}
		l.decode(req)
	}
}

func (l *AsyncLoader) decode(req *ImageRequest) {
	l.busy.Add(1)
	defer l.busy.Add(-1)

	img, fullSize, err := l.decoder.Decode(l.ctx, req.fileName, req.size, req.angle)
	if err != nil {
		log.Warn("decode %s: %v", req.fileName, err)
		metrics.DecodeTotal.WithLabelValues("error").Inc()
	} else {
		metrics.DecodeTotal.WithLabelValues("success").Inc()
	}
	l.mailbox.post(message{
		kind:     msgCompleted,
		req:      req,
		image:    img,
		fullSize: fullSize,
		loadedOK: err == nil && img != nil,
	})
}

// Run delivers results until ctx is done or the loader is closed. It must
// be the only goroutine delivering.
func (l *AsyncLoader) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return ErrClosed
		case <-l.mailbox.notify:
			l.ProcessEvents()
		}
	}
}

// ProcessEvents delivers every message posted so far and returns how many
// were handled.
func (l *AsyncLoader) ProcessEvents() int {
	msgs := l.mailbox.drain()
	for _, m := range msgs {
		l.deliver(m)
	}
	return len(msgs)
}

func (l *AsyncLoader) deliver(m message) {
	req := m.req
	if m.kind == msgCancelled {
		if req.client.Alive() {
			if ca, ok := req.client.client.(CancelAware); ok {
				ca.RequestCancelled(req)
			}
		}
		return
	}

	valid := l.queue.Finish(req)

	img := m.image
	if !m.loadedOK {
		img = media.BrokenImage(req.size)
	}
	if req.thumbnail && l.cache != nil {
		// Placeholders stay in memory only.
		l.cache.insert(req.identity, img, m.loadedOK)
	}

	if !valid || req.client == nil || !req.client.Alive() {
		metrics.DeliveriesTotal.WithLabelValues("discarded").Inc()
		return
	}

	req.client.client.ImageReady(ImageResult{
		Request:  req,
		Image:    img,
		FullSize: m.fullSize,
		LoadedOK: m.loadedOK,
	})
	if m.loadedOK {
		metrics.DeliveriesTotal.WithLabelValues("delivered").Inc()
	} else {
		metrics.DeliveriesTotal.WithLabelValues("placeholder").Inc()
	}
}

// CachedThumbnail returns the cached thumbnail for path if its current
// identity is cached.
func (l *AsyncLoader) CachedThumbnail(path string) (image.Image, bool) {
	if l.cache == nil {
		return nil, false
	}
	info, ok, err := filesystem.StatRegular(path, l.retry)
	if err != nil || !ok {
		return nil, false
	}
	return l.cache.Lookup(mediatypes.NewFileIdentity(path, info))
}

// ActiveCount returns the number of requests currently being worked on,
// including video jobs.
func (l *AsyncLoader) ActiveCount() int {
	return l.queue.InFlight()
}

// Decoding returns the number of decodes in progress.
func (l *AsyncLoader) Decoding() int {
	return int(l.busy.Load())
}

// Pending returns the queued still-image requests per priority name.
func (l *AsyncLoader) Pending() map[string]int {
	return l.queue.Depth()
}

// Workers returns the decode pool size.
func (l *AsyncLoader) Workers() int {
	return l.workers
}

// Cache returns the thumbnail cache, or nil.
func (l *AsyncLoader) Cache() *ThumbnailCache {
	return l.cache
}

// Close stops the workers. Pending requests are dropped and no further
// messages are delivered by Run.
func (l *AsyncLoader) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
		l.queue.Close()
		l.cancel()
		l.wg.Wait()
		metrics.DecodeWorkers.Set(0)
		log.Info("decode workers stopped")
	})
}
