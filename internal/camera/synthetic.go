package camera

import (
	"context"
	"math"

	"github.com/banshee-data/visiond/internal/vision"
)

// SyntheticSource generates an animated test pattern: a flat background with
// a bright block orbiting the frame centre. It keeps the daemon demo-able
// and testable without camera hardware, and the moving block exercises the
// background subtractor end to end.
type SyntheticSource struct {
	width  int
	height int
	frame  int

	background uint8
	blockSize  int
}

// NewSyntheticSource creates a synthetic source at the given resolution.
func NewSyntheticSource(width, height int) *SyntheticSource {
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	return &SyntheticSource{
		width:      width,
		height:     height,
		background: 40,
		blockSize:  width / 10,
	}
}

// Read returns the next frame of the animation. It never blocks beyond a
// context check; pacing is the caller's responsibility.
func (s *SyntheticSource) Read(ctx context.Context) (*vision.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f := vision.NewFrame(s.width, s.height)
	for i := range f.Pix {
		f.Pix[i] = s.background
	}

	// Orbit: one revolution every 120 frames.
	angle := 2 * math.Pi * float64(s.frame%120) / 120
	cx := float64(s.width)/2 + float64(s.width)/4*math.Cos(angle)
	cy := float64(s.height)/2 + float64(s.height)/4*math.Sin(angle)

	half := s.blockSize / 2
	for y := int(cy) - half; y < int(cy)+half; y++ {
		for x := int(cx) - half; x < int(cx)+half; x++ {
			f.SetBGR(x, y, 230, 230, 230)
		}
	}

	s.frame++
	return f, nil
}

// Name identifies the source in logs.
func (s *SyntheticSource) Name() string { return "synthetic" }

// Close is a no-op for the synthetic source.
func (s *SyntheticSource) Close() error { return nil }
