package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/visiond/internal/vision"
)

// ReplaySource serves frames from a directory of numbered JPEG/PNG stills,
// looping when it reaches the end. Used to reproduce a recorded scene
// offline without a live camera.
type ReplaySource struct {
	dir   string
	files []string
	next  int
}

// OpenReplay scans dir for image files. The directory must contain at least
// one decodable image.
func OpenReplay(dir string) (*ReplaySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("replay dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("replay dir %s contains no image files", dir)
	}
	sort.Strings(files)

	return &ReplaySource{dir: dir, files: files}, nil
}

// Read decodes the next still, wrapping around at the end of the sequence.
func (s *ReplaySource) Read(ctx context.Context) (*vision.Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	path := s.files[s.next]
	s.next = (s.next + 1) % len(s.files)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("replay frame %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("replay decode %s: %w", path, err)
	}
	return vision.FrameFromImage(img), nil
}

// Name identifies the source in logs.
func (s *ReplaySource) Name() string { return "replay:" + s.dir }

// Close is a no-op; files are opened per frame.
func (s *ReplaySource) Close() error { return nil }

// FrameCount returns the number of stills in the sequence.
func (s *ReplaySource) FrameCount() int { return len(s.files) }
