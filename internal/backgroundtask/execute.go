package backgroundtask

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// frameCount is the number of preview frames per video.
const frameCount = 10

func (s *Scheduler) execute(ctx context.Context, j *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.cfg.Tool == nil {
		return errNoVideoTool
	}

	switch j.kind {
	case ReadVideoLength:
		return s.readLength(ctx, j)
	case ExtractVideoFrame:
		return s.extractFrame(ctx, j)
	case HandleVideoThumbnailRequest:
		return s.handleThumbnailRequest(ctx, j)
	case SearchVideosWithoutThumbnails:
		return s.searchVideos(ctx, j)
	}
	return fmt.Errorf("unknown job kind %d", j.kind)
}

func (s *Scheduler) readLength(ctx context.Context, j *Job) error {
	length, err := s.cfg.Tool.Length(ctx, j.path)
	if err != nil {
		return fmt.Errorf("read length: %w", err)
	}
	j.mu.Lock()
	j.length = length
	j.mu.Unlock()
	return nil
}

// frameOffset is the position of preview frame index in a video of the
// given length.
func frameOffset(length time.Duration, index int) time.Duration {
	return length * time.Duration(index) / frameCount
}

func (s *Scheduler) extractFrame(ctx context.Context, j *Job) error {
	dest := s.cfg.Tool.FrameName(j.path, j.index)
	if fileExists(dest) {
		return nil
	}

	var length time.Duration
	if j.source != nil {
		length = j.source.Length()
	}
	if err := s.cfg.Tool.ExtractFrame(ctx, j.path, frameOffset(length, j.index), dest); err != nil {
		return fmt.Errorf("extract frame %d: %w", j.index, err)
	}
	return nil
}

func (s *Scheduler) handleThumbnailRequest(ctx context.Context, j *Job) error {
	if s.cfg.Decode == nil {
		return errors.New("no frame decoder configured")
	}

	thumb := s.cfg.Tool.ThumbnailName(j.path)
	if !fileExists(thumb) {
		// The thumbnail frame sits a tenth into the video, past most
		// black lead-in frames.
		length, err := s.cfg.Tool.Length(ctx, j.path)
		if err != nil {
			log.Debug("no length for %s, using first frame: %v", j.path, err)
		}
		if err := s.cfg.Tool.ExtractFrame(ctx, j.path, frameOffset(length, 1), thumb); err != nil {
			return fmt.Errorf("extract thumbnail frame: %w", err)
		}
	}

	img, fullSize, err := s.cfg.Decode(ctx, thumb, j.size, j.angle)
	if err != nil {
		return fmt.Errorf("decode thumbnail frame: %w", err)
	}
	j.mu.Lock()
	j.image = img
	j.fullSize = fullSize
	j.mu.Unlock()
	return nil
}

// searchVideos schedules one length job and FrameCount dependent frame
// jobs for every video whose last preview frame is missing and which has
// no preview work pending from an earlier search.
func (s *Scheduler) searchVideos(ctx context.Context, j *Job) error {
	if s.cfg.Source == nil {
		return errors.New("no media source configured")
	}
	videos, err := s.cfg.Source.Videos(ctx)
	if err != nil {
		return fmt.Errorf("list videos: %w", err)
	}

	s.searchMu.Lock()
	defer s.searchMu.Unlock()
	pending := s.previewPaths()

	scheduled, skipped := 0, 0
	for _, path := range videos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if fileExists(s.cfg.Tool.FrameName(path, frameCount-1)) {
			continue
		}
		if pending[path] {
			skipped++
			continue
		}
		if err := s.scheduleVideo(path, j.owner); err != nil {
			return err
		}
		scheduled++
	}

	log.Info("video scan: %d videos, %d scheduled for preview frames, %d already pending", len(videos), scheduled, skipped)
	return nil
}

// previewPaths returns the videos that have an unfinished length or frame job.
func (s *Scheduler) previewPaths() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make(map[string]bool)
	for _, j := range s.live {
		if j.kind == ReadVideoLength || j.kind == ExtractVideoFrame {
			paths[j.path] = true
		}
	}
	return paths
}

func (s *Scheduler) scheduleVideo(path string, owner any) error {
	length := NewReadVideoLengthJob(path).SetOwner(owner)
	for i := 0; i < frameCount; i++ {
		frame := NewExtractVideoFrameJob(length, path, i).SetOwner(owner)
		if err := s.AddDependency(frame, length); err != nil {
			return fmt.Errorf("schedule %s: %w", path, err)
		}
	}
	if err := s.AddJob(length, BackgroundVideoPreviewRequest); err != nil {
		return fmt.Errorf("schedule %s: %w", path, err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
