package backgroundtask

import (
	"errors"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrDependencyFailed completes a job whose dependency failed or was cancelled.
	ErrDependencyFailed = errors.New("dependency failed")

	// ErrCancelled completes a job removed by Cancel or Stop before it ran.
	ErrCancelled = errors.New("job cancelled")

	// ErrNotEligible is returned when adding a job that is waiting on
	// dependencies, already queued, or finished.
	ErrNotEligible = errors.New("job not eligible")

	// ErrClosed is returned once the scheduler is stopped.
	ErrClosed = errors.New("scheduler stopped")

	errNoVideoTool = errors.New("no video tool configured")
)

// Priority orders background jobs, highest first.
type Priority int

const (
	ForegroundThumbnailRequest Priority = iota
	ForegroundCycleRequest
	BackgroundVideoThumbnailRequest
	BackgroundVideoPreviewRequest

	priorityCount = int(BackgroundVideoPreviewRequest) + 1
)

func (p Priority) String() string {
	switch p {
	case ForegroundThumbnailRequest:
		return "foreground_thumbnail"
	case ForegroundCycleRequest:
		return "foreground_cycle"
	case BackgroundVideoThumbnailRequest:
		return "background_video_thumbnail"
	case BackgroundVideoPreviewRequest:
		return "background_video_preview"
	}
	return "unknown"
}

// Kind is the closed set of job types.
type Kind int

const (
	ReadVideoLength Kind = iota
	ExtractVideoFrame
	HandleVideoThumbnailRequest
	SearchVideosWithoutThumbnails
)

func (k Kind) String() string {
	switch k {
	case ReadVideoLength:
		return "read_video_length"
	case ExtractVideoFrame:
		return "extract_video_frame"
	case HandleVideoThumbnailRequest:
		return "handle_video_thumbnail_request"
	case SearchVideosWithoutThumbnails:
		return "search_videos_without_thumbnails"
	}
	return "unknown"
}

// State is a job's lifecycle position.
type State int

const (
	StateCreated State = iota
	StateWaiting
	StateQueued
	StateRunning
	StateCompleted
	StateCancelled
)

func (s State) String() string {
	return [...]string{"created", "waiting", "queued", "running", "completed", "cancelled"}[s]
}

func (s State) terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Outcome reports how a finished job ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	Succeeded
	Failed
	Cancelled
)

func (o Outcome) String() string {
	return [...]string{"none", "succeeded", "failed", "cancelled"}[o]
}

// Job is one unit of background work. Construct jobs with the New*Job
// functions; the zero value is not usable.
type Job struct {
	id       string
	kind     Kind
	path     string
	index    int
	source   *Job // length job feeding an ExtractVideoFrame job
	owner    any
	size     int
	angle    int
	payload  any
	callback func(*Job)

	// Graph fields, guarded by the owning Scheduler's mutex.
	priority   Priority
	pending    int
	dependents []*Job

	mu       sync.Mutex
	state    State
	outcome  Outcome
	err      error
	length   time.Duration
	image    image.Image
	fullSize image.Point
	created  time.Time
	started  time.Time
	finished time.Time
}

func newJob(kind Kind, path string) *Job {
	return &Job{
		id:       uuid.NewString(),
		kind:     kind,
		path:     path,
		priority: BackgroundVideoThumbnailRequest,
		created:  time.Now(),
	}
}

// NewReadVideoLengthJob probes the duration of a video.
func NewReadVideoLengthJob(path string) *Job {
	return newJob(ReadVideoLength, path)
}

// NewExtractVideoFrameJob extracts preview frame index of the video, at
// offset length×index/FrameCount, where length comes from lengthJob. Link
// the two with AddDependency.
func NewExtractVideoFrameJob(lengthJob *Job, path string, index int) *Job {
	j := newJob(ExtractVideoFrame, path)
	j.source = lengthJob
	j.index = index
	return j
}

// NewSearchVideosJob scans the media source for videos lacking preview
// frames and schedules their extraction.
func NewSearchVideosJob() *Job {
	return newJob(SearchVideosWithoutThumbnails, "")
}

// ThumbnailRequest describes an on-demand video thumbnail.
type ThumbnailRequest struct {
	Path  string
	Size  int
	Angle int

	// Owner groups jobs for Cancel. It must be comparable.
	Owner any

	// Payload is returned untouched by Job.Payload.
	Payload any

	// OnComplete is called once the job reaches any terminal state, on a
	// scheduler goroutine.
	OnComplete func(*Job)
}

// NewVideoThumbnailRequestJob produces a scaled, rotated thumbnail for a
// video, extracting its thumbnail frame first if needed.
func NewVideoThumbnailRequestJob(req ThumbnailRequest) *Job {
	j := newJob(HandleVideoThumbnailRequest, req.Path)
	j.size = req.Size
	j.angle = req.Angle
	j.owner = req.Owner
	j.payload = req.Payload
	j.callback = req.OnComplete
	return j
}

// SetOwner assigns the cancellation group. Call before adding the job.
func (j *Job) SetOwner(owner any) *Job {
	j.owner = owner
	return j
}

// SetPriority sets the priority used when the job is queued after its
// dependencies finish. Call before adding the job.
func (j *Job) SetPriority(p Priority) *Job {
	j.priority = p
	return j
}

// ID returns the job's unique id.
func (j *Job) ID() string { return j.id }

// Kind returns the job type.
func (j *Job) Kind() Kind { return j.kind }

// Path returns the video the job works on, empty for searches.
func (j *Job) Path() string { return j.path }

// Index returns the preview frame index of an ExtractVideoFrame job.
func (j *Job) Index() int { return j.index }

// Owner returns the value jobs are cancelled by.
func (j *Job) Owner() any { return j.owner }

// Payload returns the caller's value passed through a thumbnail request.
func (j *Job) Payload() any { return j.payload }

// Size returns the requested thumbnail size.
func (j *Job) Size() int { return j.size }

// Angle returns the requested rotation.
func (j *Job) Angle() int { return j.angle }

// State returns the current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Outcome returns how the job ended, or OutcomeNone while unfinished.
func (j *Job) Outcome() Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outcome
}

// Err returns the failure or cancellation cause.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Length returns the duration found by a ReadVideoLength job.
func (j *Job) Length() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.length
}

// Image returns the thumbnail produced by a HandleVideoThumbnailRequest
// job and the full size of the frame it was scaled from.
func (j *Job) Image() (image.Image, image.Point) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.image, j.fullSize
}

func (j *Job) setState(s State) {
	j.mu.Lock()
	j.state = s
	if s == StateRunning {
		j.started = time.Now()
	}
	j.mu.Unlock()
}

// complete records the terminal state. Returns false if already terminal.
func (j *Job) complete(outcome Outcome, err error) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.terminal() {
		return false
	}
	j.state = StateCompleted
	if outcome == Cancelled {
		j.state = StateCancelled
	}
	j.outcome = outcome
	j.err = err
	j.finished = time.Now()
	return true
}

func (j *Job) runTime() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started.IsZero() {
		return 0
	}
	return j.finished.Sub(j.started)
}

// JobInfo is a read-only view of a job for status reporting.
type JobInfo struct {
	ID       string    `json:"id"`
	Kind     string    `json:"kind"`
	Path     string    `json:"path,omitempty"`
	Index    int       `json:"index,omitempty"`
	Priority string    `json:"priority"`
	State    string    `json:"state"`
	Pending  int       `json:"pendingDependencies,omitempty"`
	Created  time.Time `json:"created"`
	Started  time.Time `json:"started,omitzero"`
}

func (j *Job) info() JobInfo {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobInfo{
		ID:       j.id,
		Kind:     j.kind.String(),
		Path:     j.path,
		Index:    j.index,
		Priority: j.priority.String(),
		State:    j.state.String(),
		Pending:  j.pending,
		Created:  j.created,
		Started:  j.started,
	}
}
