package imagemanager

import (
	"image"
	"sync/atomic"

	"photoalbum/internal/mediatypes"
)

// Priority orders still-image requests, highest first.
type Priority int

const (
	Viewer Priority = iota
	ViewerPreload
	ThumbnailVisible
	ThumbnailInvisible
	BatchTask

	priorityCount = int(BatchTask) + 1
)

var priorityNames = [...]string{"viewer", "viewer_preload", "thumbnail_visible", "thumbnail_invisible", "batch_task"}

func (p Priority) String() string {
	if p < 0 || int(p) >= priorityCount {
		return "unknown"
	}
	return priorityNames[p]
}

// StopAction selects what Stop cancels.
type StopAction int

const (
	// StopAll cancels every pending request of the client.
	StopAll StopAction = 0
	// StopOnlyNonPriorityLoads keeps Viewer, ViewerPreload and
	// ThumbnailVisible requests.
	StopOnlyNonPriorityLoads StopAction = 1 << 0
	// NotifyCancelled reports each cancelled request to the client if it
	// implements CancelAware.
	NotifyCancelled StopAction = 1 << 1
)

// ImageClient receives finished images on the loader's owning goroutine.
type ImageClient interface {
	ImageReady(ImageResult)
}

// CancelAware is implemented by clients that want to hear about requests
// cancelled with NotifyCancelled.
type CancelAware interface {
	RequestCancelled(*ImageRequest)
}

// ImageResult is what a client receives for a request.
type ImageResult struct {
	Request  *ImageRequest
	Image    image.Image
	FullSize image.Point
	LoadedOK bool
}

// ClientHandle addresses one client. Handles compare by pointer. After
// Release the client is never called again.
type ClientHandle struct {
	client ImageClient
	loader *AsyncLoader
	alive  atomic.Bool
}

// Alive reports whether the handle has not been released.
func (h *ClientHandle) Alive() bool {
	return h != nil && h.alive.Load()
}

// Release marks the client gone and cancels all of its requests.
func (h *ClientHandle) Release() {
	if h == nil || !h.alive.CompareAndSwap(true, false) {
		return
	}
	if h.loader != nil {
		h.loader.Stop(h, StopAll)
	}
}

// ImageRequest asks for one file at one size and rotation. Setters are
// ignored once the request has been passed to Load.
type ImageRequest struct {
	fileName  string
	identity  mediatypes.FileIdentity
	size      int
	angle     int
	priority  Priority
	thumbnail bool
	client    *ClientHandle
	frozen    atomic.Bool
}

// NewRequest creates a request for fileName fitted into a size×size box
// (size <= 0 for full resolution) and rotated clockwise by angle degrees.
func NewRequest(fileName string, size, angle int, client *ClientHandle) *ImageRequest {
	return &ImageRequest{
		fileName: fileName,
		size:     size,
		angle:    angle,
		priority: ThumbnailVisible,
		client:   client,
	}
}

// SetPriority sets the queue band.
func (r *ImageRequest) SetPriority(p Priority) *ImageRequest {
	if !r.frozen.Load() {
		r.priority = p
	}
	return r
}

// SetThumbnail marks the result for insertion into the thumbnail cache.
func (r *ImageRequest) SetThumbnail(thumbnail bool) *ImageRequest {
	if !r.frozen.Load() {
		r.thumbnail = thumbnail
	}
	return r
}

// FileName returns the path of the requested file.
func (r *ImageRequest) FileName() string { return r.fileName }

// Identity returns the path and fingerprint the request was created with.
func (r *ImageRequest) Identity() mediatypes.FileIdentity { return r.identity }

// Size returns the bounding box edge; <= 0 means full resolution.
func (r *ImageRequest) Size() int { return r.size }

// Angle returns the clockwise rotation in degrees.
func (r *ImageRequest) Angle() int { return r.angle }

// Priority returns the queue band of the request.
func (r *ImageRequest) Priority() Priority { return r.priority }

// IsThumbnail reports whether the result goes into the thumbnail cache.
func (r *ImageRequest) IsThumbnail() bool { return r.thumbnail }

// Client returns the handle of the requesting client.
func (r *ImageRequest) Client() *ClientHandle { return r.client }

// requestKey identifies equivalent requests.
type requestKey struct {
	identity mediatypes.FileIdentity
	size     int
	angle    int
	client   *ClientHandle
}

func (r *ImageRequest) key() requestKey {
	return requestKey{identity: r.identity, size: r.size, angle: r.angle, client: r.client}
}

// clientAlive is true for requests without a client: their results are
// still cached.
func (r *ImageRequest) clientAlive() bool {
	return r.client == nil || r.client.Alive()
}
