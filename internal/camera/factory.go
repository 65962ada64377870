package camera

import (
	"fmt"

	"github.com/banshee-data/visiond/internal/config"
	"github.com/banshee-data/visiond/internal/monitoring"
)

// Open selects a frame source from the daemon configuration:
//
//  1. a replay directory, when configured (offline reproduction wins);
//  2. the configured camera stream;
//  3. the synthetic test pattern, when the camera cannot be opened and
//     virtual fallback is permitted.
//
// With no camera configured and fallback forbidden, Open fails and the
// daemon exits with an initialization error.
func Open(cfg *config.DaemonConfig) (FrameSource, error) {
	if dir := cfg.GetReplayDir(); dir != "" {
		src, err := OpenReplay(dir)
		if err != nil {
			return nil, err
		}
		monitoring.Logf("camera: using replay source %s (%d frames)", dir, src.FrameCount())
		return src, nil
	}

	url := cfg.GetCameraURL()
	if url != "" {
		src, err := OpenMJPEG(url)
		if err == nil {
			monitoring.Logf("camera: connected to %s", url)
			return src, nil
		}
		if !cfg.GetAllowVirtual() {
			return nil, fmt.Errorf("camera unavailable and virtual fallback disabled: %w", err)
		}
		monitoring.Logf("camera unavailable (%v), falling back to synthetic source", err)
	} else if !cfg.GetAllowVirtual() {
		return nil, fmt.Errorf("no camera configured and virtual fallback disabled")
	}

	return NewSyntheticSource(cfg.GetCameraWidth(), cfg.GetCameraHeight()), nil
}
