package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"photoalbum/internal/logging"
	"photoalbum/internal/mediatypes"
	"photoalbum/internal/metrics"

	"github.com/cespare/xxhash/v2"
	"github.com/disintegration/imaging"
)

var log = logging.For("video")

var (
	// ErrToolMissing is returned when ffmpeg or ffprobe is not installed.
	ErrToolMissing = errors.New("video tool not available")

	// ErrTimeout is returned when a tool exceeds its time budget.
	ErrTimeout = errors.New("video tool timed out")

	// ErrNoFrame is returned when ffmpeg exits cleanly without writing a frame.
	ErrNoFrame = errors.New("no frame extracted")
)

// DefaultTimeout bounds a single ffmpeg/ffprobe invocation.
const DefaultTimeout = 30 * time.Second

// FrameCount is the number of preview frames extracted per video.
const FrameCount = 10

// Config configures an Extractor.
type Config struct {
	FFmpegPath  string // default "ffmpeg" from PATH
	FFprobePath string // default "ffprobe" from PATH
	CacheDir    string
	Timeout     time.Duration
}

// Extractor runs ffprobe and ffmpeg.
type Extractor struct {
	ffmpeg   string
	ffprobe  string
	frameDir string
	timeout  time.Duration

	processMu sync.Mutex
	processes map[*exec.Cmd]string
}

// New resolves the tool binaries and returns an extractor. Missing tools
// are not an error; Available reports them.
func New(cfg Config) *Extractor {
	e := &Extractor{
		ffmpeg:    resolveTool(cfg.FFmpegPath, "ffmpeg"),
		ffprobe:   resolveTool(cfg.FFprobePath, "ffprobe"),
		frameDir:  filepath.Join(cfg.CacheDir, "videoThumbnails"),
		timeout:   cfg.Timeout,
		processes: make(map[*exec.Cmd]string),
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}

	if e.Available() {
		log.Info("using ffmpeg=%s ffprobe=%s (timeout %v)", e.ffmpeg, e.ffprobe, e.timeout)
	} else {
		log.Warn("ffmpeg/ffprobe not found, video thumbnails disabled")
	}
	return e
}

func resolveTool(configured, name string) string {
	if configured == "" {
		configured = name
	}
	path, err := exec.LookPath(configured)
	if err != nil {
		return ""
	}
	return path
}

// Available reports whether both tools were found.
func (e *Extractor) Available() bool {
	return e != nil && e.ffmpeg != "" && e.ffprobe != ""
}

// baseName keys extracted frames by the video's fingerprint, so frames of
// a replaced video are never reused. Unreadable videos are keyed by path.
func (e *Extractor) baseName(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return strconv.FormatUint(xxhash.Sum64String(path), 16)
	}
	return strconv.FormatUint(mediatypes.NewFileIdentity(path, info).Fingerprint, 16)
}

// FrameName returns the file holding preview frame index of the video.
func (e *Extractor) FrameName(path string, index int) string {
	return filepath.Join(e.frameDir, fmt.Sprintf("%s-%d.jpg", e.baseName(path), index))
}

// ThumbnailName returns the file holding the video's thumbnail frame.
func (e *Extractor) ThumbnailName(path string) string {
	return filepath.Join(e.frameDir, e.baseName(path)+".jpg")
}

// run executes a tool with the per-invocation timeout and returns stdout.
func (e *Extractor) run(ctx context.Context, op, tool string, args ...string) ([]byte, error) {
	if tool == "" {
		return nil, ErrToolMissing
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, tool, args...)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		metrics.VideoToolErrors.WithLabelValues(op, "exit").Inc()
		return nil, fmt.Errorf("failed to start %s: %w", filepath.Base(tool), err)
	}

	e.processMu.Lock()
	e.processes[cmd] = op
	e.processMu.Unlock()

	err := cmd.Wait()

	e.processMu.Lock()
	delete(e.processes, cmd)
	e.processMu.Unlock()

	metrics.VideoToolDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.VideoToolErrors.WithLabelValues(op, "timeout").Inc()
			return nil, fmt.Errorf("%s after %v: %w", filepath.Base(tool), e.timeout, ErrTimeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.VideoToolErrors.WithLabelValues(op, "exit").Inc()
		return nil, fmt.Errorf("%s error: %w - %s", filepath.Base(tool), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Length returns the duration of the video.
func (e *Extractor) Length(ctx context.Context, path string) (time.Duration, error) {
	out, err := e.run(ctx, "length", e.ffprobe,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	if err != nil {
		return 0, err
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		metrics.VideoToolErrors.WithLabelValues("length", "parse").Inc()
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || seconds <= 0 {
		metrics.VideoToolErrors.WithLabelValues("length", "parse").Inc()
		return 0, fmt.Errorf("ffprobe reported no duration for %s", path)
	}

	length := time.Duration(seconds * float64(time.Second))
	log.Debug("length of %s: %v", path, length)
	return length, nil
}

// ExtractFrame writes the frame at offset to dest as a JPEG. If seeking
// yields nothing it retries from the first frame. dest is replaced
// atomically.
func (e *Extractor) ExtractFrame(ctx context.Context, path string, offset time.Duration, dest string) error {
	if !e.Available() {
		return ErrToolMissing
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create frame directory: %w", err)
	}

	err := e.extract(ctx, path, offset, dest)
	if err != nil && offset > 0 && ctx.Err() == nil {
		log.Debug("seek to %v failed for %s: %v, retrying from first frame", offset, path, err)
		err = e.extract(ctx, path, 0, dest)
	}
	return err
}

func (e *Extractor) extract(ctx context.Context, path string, offset time.Duration, dest string) error {
	f, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary frame file: %w", err)
	}
	tmp := f.Name()
	f.Close()
	defer os.Remove(tmp)

	_, err = e.run(ctx, "frame", e.ffmpeg,
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-ss", strconv.FormatFloat(offset.Seconds(), 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-q:v", "3",
		"-f", "image2",
		"-c:v", "mjpeg",
		tmp,
	)
	if err != nil {
		return err
	}

	if info, err := os.Stat(tmp); err != nil || info.Size() == 0 {
		return fmt.Errorf("%s at %v: %w", path, offset, ErrNoFrame)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("failed to store frame: %w", err)
	}
	return nil
}

// DecodeImage decodes the first frame of any file ffmpeg understands. It is
// the still-image decoder of last resort for formats Go cannot read.
func (e *Extractor) DecodeImage(ctx context.Context, path string) (image.Image, error) {
	if !e.Available() {
		return nil, ErrToolMissing
	}

	out, err := e.run(ctx, "frame", e.ffmpeg,
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no output for %s", path)
	}

	img, err := imaging.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("failed to decode ffmpeg output: %w", err)
	}
	return img, nil
}

// Running returns the number of tool processes currently running.
func (e *Extractor) Running() int {
	e.processMu.Lock()
	defer e.processMu.Unlock()
	return len(e.processes)
}

// Cleanup kills every running tool process.
func (e *Extractor) Cleanup() {
	e.processMu.Lock()
	defer e.processMu.Unlock()

	for cmd, op := range e.processes {
		if cmd.Process != nil {
			log.Info("killing %s process (pid %d)", op, cmd.Process.Pid)
			if err := cmd.Process.Kill(); err != nil {
				log.Warn("failed to kill %s process: %v", op, err)
			}
		}
	}
}
