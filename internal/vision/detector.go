package vision

import (
	"fmt"
	"image"
	"sync"

	xdraw "golang.org/x/image/draw"

	"github.com/banshee-data/visiond/internal/geometry"
	"github.com/banshee-data/visiond/internal/monitoring"
)

// Params configures a Detector.
type Params struct {
	Model ModelParams

	// MinBlobArea is the pixel-squared floor, at full frame resolution,
	// below which a connected component is treated as sensor noise.
	MinBlobArea int

	// ProcessingWidth downscales frames wider than this before background
	// subtraction. Zero disables downscaling.
	ProcessingWidth int

	// StabilityFrames is the window length for the stability check.
	StabilityFrames int

	// StabilityTolerancePx bounds box-centre drift across the window.
	StabilityTolerancePx float64
}

// DetectionResult is the per-zone, per-frame output. It is recomputed every
// evaluated frame and never persisted.
type DetectionResult struct {
	ZoneID      string  `json:"zone_id"`
	ZoneName    string  `json:"zone_name"`
	Detected    bool    `json:"detected"`
	Boxes       []Box   `json:"boxes"`
	Confidence  float64 `json:"confidence"`
	ObjectCount int     `json:"object_count"`
	TotalBlobs  int     `json:"total_blob_count"`
	Note        string  `json:"note,omitempty"`
}

// Confidence maps a blob count onto a soft 0..1 score. This detector is not
// a calibrated classifier; the score only grows monotonically with count.
func Confidence(blobCount int) float64 {
	if blobCount <= 0 {
		return 0.0
	}
	c := 0.4 + 0.3*float64(blobCount)
	if c > 1.0 {
		c = 1.0
	}
	return c
}

// Detector classifies foreground presence per zone using an adaptive
// background model. It is safe for use from a single goroutine; the mutex
// only guards Reset against a concurrent Process from admin tooling.
type Detector struct {
	mu        sync.Mutex
	params    Params
	model     *backgroundModel
	stability *stabilityTracker
}

// NewDetector creates a detector with the given parameters.
func NewDetector(params Params) *Detector {
	if params.MinBlobArea <= 0 {
		params.MinBlobArea = 500
	}
	window := params.StabilityFrames
	if window <= 0 {
		window = 5
	}
	return &Detector{
		params:    params,
		model:     newBackgroundModel(params.Model),
		stability: newStabilityTracker(window, params.StabilityTolerancePx),
	}
}

// Warmed reports whether the background model has seen at least one frame.
func (d *Detector) Warmed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.model.seeded()
}

// Process runs background subtraction on one frame and counts surviving
// blobs per zone. A failure for one zone degrades that zone's result to
// detected=false with a note; the remaining zones are still evaluated.
func (d *Detector) Process(frame *Frame, zones []*geometry.Zone) []DetectionResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	results := make([]DetectionResult, 0, len(zones))

	if err := frame.Validate(); err != nil {
		for _, z := range zones {
			results = append(results, DetectionResult{
				ZoneID:   z.ID,
				ZoneName: z.Name,
				Note:     fmt.Sprintf("frame rejected: %v", err),
			})
		}
		return results
	}

	boxes := d.extractBlobs(frame)

	for _, z := range zones {
		res := DetectionResult{ZoneID: z.ID, ZoneName: z.Name, TotalBlobs: len(boxes)}

		if err := z.Validate(); err != nil {
			res.Note = fmt.Sprintf("zone skipped: %v", err)
			results = append(results, res)
			continue
		}

		for _, b := range boxes {
			cx, cy := b.Center()
			if z.Contains(cx, cy) {
				res.Boxes = append(res.Boxes, b)
			}
		}
		res.ObjectCount = len(res.Boxes)
		res.Detected = res.ObjectCount > 0
		res.Confidence = Confidence(res.ObjectCount)

		d.stability.record(z.ID, res.Boxes)
		results = append(results, res)
	}

	return results
}

// extractBlobs converts the frame to grayscale, optionally downscales it,
// applies the background model and morphology, and returns full-resolution
// bounding boxes of surviving components.
func (d *Detector) extractBlobs(frame *Frame) []Box {
	gray := frame.Gray()

	procW, procH := frame.Width, frame.Height
	scale := 1.0
	if pw := d.params.ProcessingWidth; pw > 0 && frame.Width > pw {
		procW = pw
		procH = frame.Height * pw / frame.Width
		if procH < 1 {
			procH = 1
		}
		scale = float64(frame.Width) / float64(procW)

		scaled := image.NewGray(image.Rect(0, 0, procW, procH))
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), gray, gray.Bounds(), xdraw.Src, nil)
		gray = scaled
	}

	mask := d.model.apply(gray.Pix, procW, procH)
	mask = openThenClose(mask, procW, procH)

	// MinBlobArea is specified at full resolution; convert to the
	// processing scale before filtering.
	minArea := int(float64(d.params.MinBlobArea)/(scale*scale) + 0.5)
	if minArea < 1 {
		minArea = 1
	}

	blobs := findBlobs(mask, procW, procH, minArea)
	if scale == 1.0 {
		return blobs
	}

	out := make([]Box, len(blobs))
	for i, b := range blobs {
		out[i] = Box{
			X: int(float64(b.X) * scale),
			Y: int(float64(b.Y) * scale),
			W: int(float64(b.W)*scale + 0.5),
			H: int(float64(b.H)*scale + 0.5),
		}
	}
	return out
}

// Stable reports whether the zone's detections have settled across the
// stability window. Zones without a full window of history are unstable.
func (d *Detector) Stable(zoneID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stability.stable(zoneID)
}

// Reset discards the background model and stability history. Used after
// long-running drift or an explicit operator request.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.model.reset()
	d.stability.reset()
	monitoring.Logf("detector background model reset")
}

// Cleanup releases detector state on shutdown.
func (d *Detector) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.model.reset()
	d.stability.reset()
}
