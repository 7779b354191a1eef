package backgroundtask

import (
	"context"
	"errors"
	"image"
	"sort"
	"sync"
	"time"

	"photoalbum/internal/logging"
	"photoalbum/internal/priorityqueue"
	"photoalbum/internal/workers"
)

var log = logging.For("jobs")

// VideoTool is the frame extraction backend.
type VideoTool interface {
	Length(ctx context.Context, path string) (time.Duration, error)
	ExtractFrame(ctx context.Context, path string, offset time.Duration, dest string) error
	FrameName(path string, index int) string
	ThumbnailName(path string) string
}

// MediaSource lists the videos known to the collection.
type MediaSource interface {
	Videos(ctx context.Context) ([]string, error)
}

// FrameDecoder scales and rotates an extracted frame.
type FrameDecoder func(ctx context.Context, path string, size, angle int) (image.Image, image.Point, error)

// Observer is notified of every finished job.
type Observer interface {
	JobFinished(kind, outcome string, durationSeconds float64)
}

// Config configures a Scheduler.
type Config struct {
	// Workers is the pool size (0 = workers.ForBackgroundJobs()).
	Workers  int
	Tool     VideoTool
	Source   MediaSource
	Decode   FrameDecoder
	Observer Observer
}

// Scheduler runs jobs on a bounded worker pool.
type Scheduler struct {
	cfg Config

	mu      sync.Mutex
	cond    *sync.Cond
	queue   *priorityqueue.Queue[*Job]
	live    map[string]*Job // every non-terminal job known to the scheduler
	running int
	paused  bool
	stopped bool
	started bool
	idle    chan struct{} // closed when live is empty and no callbacks are pending
	// notifying counts finished jobs whose callbacks have not returned yet
	notifying int

	// searchMu serializes video searches so each sees the jobs scheduled
	// by the previous one.
	searchMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. Call Start to begin running jobs.
func New(cfg Config) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = workers.ForBackgroundJobs()
	}
	s := &Scheduler{
		cfg:   cfg,
		queue: priorityqueue.New[*Job](priorityCount),
		live:  make(map[string]*Job),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the worker pool. Cancelling ctx aborts running jobs.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	log.Info("starting %d background job workers", s.cfg.Workers)
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop cancels every job that has not started, aborts running ones and
// waits for the workers to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	var finished []*Job
	for _, j := range s.live {
		if j.State() != StateRunning {
			finished = append(finished, s.cancelLocked(j)...)
		}
	}
	s.queue.Clear()
	s.cond.Broadcast()
	cancel := s.cancel
	s.notifying++
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.notify(finished)
	s.wg.Wait()
	log.Info("background job workers stopped")
}

// AddJob queues an eligible job at priority p.
func (s *Scheduler) AddJob(j *Job, p Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrClosed
	}
	if j.State() != StateCreated || j.pending > 0 {
		return ErrNotEligible
	}
	j.priority = p
	s.enqueueLocked(j)
	return nil
}

// AddDependency makes dependent wait for on. The dependent is queued
// automatically, at its own priority, once all its dependencies succeed.
// If on already succeeded the call is a no-op; if it already failed the
// call returns ErrDependencyFailed.
func (s *Scheduler) AddDependency(dependent, on *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrClosed
	}
	if st := dependent.State(); st != StateCreated && st != StateWaiting {
		return ErrNotEligible
	}

	switch on.Outcome() {
	case Succeeded:
		return nil
	case Failed, Cancelled:
		return ErrDependencyFailed
	}

	dependent.pending++
	dependent.setState(StateWaiting)
	on.dependents = append(on.dependents, dependent)
	s.trackLocked(dependent)
	return nil
}

// Cancel removes every waiting or queued job of owner and fails their
// dependents. Running jobs are left alone. It returns the cancelled jobs
// owned by owner.
func (s *Scheduler) Cancel(owner any) []*Job {
	return s.CancelWhere(owner, nil)
}

// CancelWhere is Cancel restricted to the owner's jobs for which match
// returns true. A nil match selects all of them.
func (s *Scheduler) CancelWhere(owner any, match func(*Job) bool) []*Job {
	if owner == nil {
		return nil
	}

	s.mu.Lock()
	var candidates, cancelled, finished []*Job
	for _, j := range s.live {
		if j.owner != owner || (match != nil && !match(j)) {
			continue
		}
		switch j.State() {
		case StateWaiting, StateQueued, StateCreated:
			candidates = append(candidates, j)
		}
	}
	for _, j := range candidates {
		// A candidate may already have been failed by an earlier cascade.
		if done := s.cancelLocked(j); len(done) > 0 {
			cancelled = append(cancelled, j)
			finished = append(finished, done...)
		}
	}
	s.notifying++
	s.mu.Unlock()

	s.notify(finished)
	if len(cancelled) > 0 {
		log.Debug("cancelled %d jobs", len(cancelled))
	}
	return cancelled
}

// Pause stops workers from taking new jobs. Running jobs finish.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	log.Info("background jobs paused")
}

// Resume undoes Pause.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	s.paused = false
	s.cond.Broadcast()
	s.mu.Unlock()
	log.Info("background jobs resumed")
}

// IsPaused reports whether the scheduler is paused.
func (s *Scheduler) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Stats returns the number of queued, running and waiting jobs.
func (s *Scheduler) Stats() (queued, running, waiting int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queued = s.queue.Len()
	running = s.running
	waiting = len(s.live) - queued - running
	return queued, running, waiting
}

// Snapshot lists every unfinished job: running first, then queued by
// priority, then waiting.
func (s *Scheduler) Snapshot() []JobInfo {
	s.mu.Lock()
	infos := make([]JobInfo, 0, len(s.live))
	for _, j := range s.live {
		infos = append(infos, j.info())
	}
	s.mu.Unlock()

	rank := map[string]int{"running": 0, "queued": 1, "waiting": 2, "created": 3}
	sort.Slice(infos, func(a, b int) bool {
		ra, rb := rank[infos[a].State], rank[infos[b].State]
		if ra != rb {
			return ra < rb
		}
		if infos[a].Priority != infos[b].Priority {
			return priorityRank(infos[a].Priority) < priorityRank(infos[b].Priority)
		}
		return infos[a].Created.Before(infos[b].Created)
	})
	return infos
}

func priorityRank(name string) int {
	for p := Priority(0); int(p) < priorityCount; p++ {
		if p.String() == name {
			return int(p)
		}
	}
	return priorityCount
}

// Wait blocks until no job is waiting, queued or running, or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	if s.idleLocked() {
		s.mu.Unlock()
		return nil
	}
	if s.idle == nil {
		s.idle = make(chan struct{})
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) trackLocked(j *Job) {
	s.live[j.id] = j
}

func (s *Scheduler) untrackLocked(j *Job) {
	delete(s.live, j.id)
}

func (s *Scheduler) idleLocked() bool {
	return len(s.live) == 0 && s.notifying == 0
}

func (s *Scheduler) enqueueLocked(j *Job) {
	j.setState(StateQueued)
	s.trackLocked(j)
	s.queue.Push(int(j.priority), j)
	s.cond.Signal()
}

// cancelLocked cancels j and fails its dependents. It returns every job
// it finished so the caller can notify outside the lock.
func (s *Scheduler) cancelLocked(j *Job) []*Job {
	if !j.complete(Cancelled, ErrCancelled) {
		return nil
	}
	s.queue.RemoveFunc(func(q *Job) bool { return q == j })
	s.untrackLocked(j)
	return append([]*Job{j}, s.failDependentsLocked(j)...)
}

// failDependentsLocked completes every transitive dependent of j as Failed.
func (s *Scheduler) failDependentsLocked(j *Job) []*Job {
	var finished []*Job
	for _, d := range j.dependents {
		if !d.complete(Failed, ErrDependencyFailed) {
			continue
		}
		s.queue.RemoveFunc(func(q *Job) bool { return q == d })
		s.untrackLocked(d)
		finished = append(finished, d)
		finished = append(finished, s.failDependentsLocked(d)...)
	}
	j.dependents = nil
	return finished
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	for {
		j, ok := s.next()
		if !ok {
			log.Debug("worker %d exiting", id)
			return
		}
		err := s.run(j)
		s.finish(j, err)
	}
}

// next blocks until a job is available, or returns false once stopped.
func (s *Scheduler) next() (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for !s.stopped && (s.paused || s.queue.Len() == 0) {
		s.cond.Wait()
	}
	if s.stopped {
		return nil, false
	}
	j, _ := s.queue.Pop()
	j.setState(StateRunning)
	s.running++
	return j, true
}

func (s *Scheduler) run(j *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("job %s (%s) panicked: %v", j.id, j.kind, r)
			err = errors.New("job panicked")
		}
	}()
	return s.execute(s.ctx, j)
}

func (s *Scheduler) finish(j *Job, err error) {
	outcome := Succeeded
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) && s.ctx.Err() != nil:
		outcome = Cancelled
	default:
		outcome = Failed
		log.Warn("%s job for %s failed: %v", j.kind, j.path, err)
	}

	s.mu.Lock()
	s.running--
	j.complete(outcome, err)
	s.untrackLocked(j)

	finished := []*Job{j}
	if outcome == Succeeded {
		for _, d := range j.dependents {
			d.pending--
			if d.pending == 0 && d.State() == StateWaiting && !s.stopped {
				s.enqueueLocked(d)
			}
		}
		j.dependents = nil
	} else {
		finished = append(finished, s.failDependentsLocked(j)...)
	}
	s.notifying++
	s.mu.Unlock()

	s.notify(finished)
}

// notify reports finished jobs to the observer and their callbacks. The
// caller must have incremented s.notifying.
func (s *Scheduler) notify(finished []*Job) {
	for _, j := range finished {
		if s.cfg.Observer != nil {
			s.cfg.Observer.JobFinished(j.kind.String(), j.Outcome().String(), j.runTime().Seconds())
		}
		if j.callback != nil {
			j.callback(j)
		}
	}

	s.mu.Lock()
	s.notifying--
	if s.idleLocked() && s.idle != nil {
		close(s.idle)
		s.idle = nil
	}
	s.mu.Unlock()
}
