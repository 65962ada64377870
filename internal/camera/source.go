// Package camera provides frame sources for the daemon: a network camera
// stream, a replay source for recorded frames, and a synthetic test pattern
// used when no hardware is available.
package camera

import (
	"context"

	"github.com/banshee-data/visiond/internal/vision"
)

// FrameSource yields BGR frames. Implementations are owned exclusively by
// the daemon process and are not safe for concurrent readers.
type FrameSource interface {
	// Read blocks until the next frame is available or ctx is done.
	Read(ctx context.Context) (*vision.Frame, error)

	// Name identifies the source in logs.
	Name() string

	// Close releases the underlying device or connection.
	Close() error
}
