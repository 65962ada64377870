package vision

// Constants for background model configuration
const (
	// DefaultHistory is the nominal number of frames over which the model
	// converges to a changed background.
	DefaultHistory = 200
	// DefaultLearningRate is the per-frame update fraction after warmup.
	DefaultLearningRate = 0.005
	// DefaultVarThreshold is the squared-deviation multiplier separating
	// foreground from background.
	DefaultVarThreshold = 16.0
	// initialVariance seeds a cell's variance on its first observation so a
	// single noisy frame does not mark the whole image foreground.
	initialVariance = 100.0
	// minVariance floors the per-pixel variance: cameras with very flat
	// scenes would otherwise flag single-count sensor noise as foreground.
	minVariance = 16.0
	// foregroundAbsorb is the reduced update fraction applied to foreground
	// pixels so a stationary object is eventually absorbed into background.
	foregroundAbsorbFraction = 0.1
)

// ModelParams configures the adaptive background model. Zero values fall
// back to the defaults above.
type ModelParams struct {
	History       int     // warmup window in frames
	LearningRate  float64 // background update fraction per frame
	VarThreshold  float64 // squared-deviation multiplier for foreground
	DetectShadows bool    // suppress darkened-background pixels
}

func (p ModelParams) history() int {
	if p.History <= 0 {
		return DefaultHistory
	}
	return p.History
}

func (p ModelParams) learningRate() float32 {
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		return DefaultLearningRate
	}
	return float32(p.LearningRate)
}

func (p ModelParams) varThreshold() float32 {
	if p.VarThreshold <= 0 {
		return DefaultVarThreshold
	}
	return float32(p.VarThreshold)
}

// backgroundModel keeps a running mean and variance per pixel, the
// single-Gaussian equivalent of the adaptive subtractors used upstream.
type backgroundModel struct {
	params ModelParams

	width  int
	height int
	mean   []float32
	vari   []float32
	frames int
}

func newBackgroundModel(params ModelParams) *backgroundModel {
	return &backgroundModel{params: params}
}

// reset discards all learned state; the next frame reseeds the model.
func (m *backgroundModel) reset() {
	m.mean = nil
	m.vari = nil
	m.frames = 0
	m.width = 0
	m.height = 0
}

// seeded reports whether the model has absorbed at least one frame.
func (m *backgroundModel) seeded() bool {
	return m.frames > 0
}

// apply classifies each pixel of the grayscale plane as foreground (255) or
// background (0) and folds the observation into the model. The first frame
// (or any resolution change) reseeds the model and yields an empty mask.
func (m *backgroundModel) apply(gray []uint8, width, height int) []uint8 {
	if width != m.width || height != m.height {
		m.width = width
		m.height = height
		m.mean = make([]float32, width*height)
		m.vari = make([]float32, width*height)
		m.frames = 0
	}

	mask := make([]uint8, width*height)

	if m.frames == 0 {
		for i, v := range gray {
			m.mean[i] = float32(v)
			m.vari[i] = initialVariance
		}
		m.frames = 1
		return mask
	}

	alpha := m.params.learningRate()
	// During warmup the model converges faster: 1/(frames+1) behaves like a
	// running average until the nominal rate takes over.
	if warmup := float32(1.0) / float32(m.frames+1); warmup > alpha && m.frames < m.params.history() {
		alpha = warmup
	}

	thresh := m.params.varThreshold()
	shadows := m.params.DetectShadows

	for i, v := range gray {
		x := float32(v)
		mu := m.mean[i]
		va := m.vari[i]
		if va < minVariance {
			va = minVariance
		}

		d := x - mu
		d2 := d * d
		foreground := d2 > thresh*va

		if foreground && shadows && x < mu && x > 0.5*mu {
			// Darkened but proportional to the background: a cast shadow,
			// not an object.
			foreground = false
		}

		a := alpha
		if foreground {
			mask[i] = 255
			a = alpha * foregroundAbsorbFraction
		}
		m.mean[i] = mu + a*d
		m.vari[i] = m.vari[i] + a*(d2-m.vari[i])
	}

	m.frames++
	return mask
}
