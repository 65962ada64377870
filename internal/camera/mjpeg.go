package camera

import (
	"context"
	"fmt"
	"image/jpeg"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/banshee-data/visiond/internal/monitoring"
	"github.com/banshee-data/visiond/internal/vision"
)

// dialTimeout bounds how long a connect may spend probing an unreachable
// camera before the factory falls back to the synthetic source. It applies
// to dialing and response headers only, never to the long-lived body.
const dialTimeout = 10 * time.Second

// MJPEGSource reads frames from an MJPEG-over-HTTP stream -- the common
// "multipart/x-mixed-replace" endpoint exposed by IP cameras. A broken
// stream is re-dialled transparently on the next Read.
type MJPEGSource struct {
	url    string
	client *http.Client

	resp   *http.Response
	reader *multipart.Reader
}

// OpenMJPEG connects to url and verifies the stream speaks multipart MJPEG.
func OpenMJPEG(url string) (*MJPEGSource, error) {
	s := &MJPEGSource{
		url: url,
		client: &http.Client{
			// No Client.Timeout: it would cap total body read time and kill
			// the stream. Bound the dial and header phases instead.
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: dialTimeout}).DialContext,
				ResponseHeaderTimeout: dialTimeout,
			},
		},
	}
	if err := s.connect(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MJPEGSource) connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("camera request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("camera connect %s: %w", s.url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("camera %s returned status %d", s.url, resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/x-mixed-replace" || params["boundary"] == "" {
		resp.Body.Close()
		return fmt.Errorf("camera %s is not an MJPEG stream (content-type %q)", s.url, resp.Header.Get("Content-Type"))
	}

	s.resp = resp
	s.reader = multipart.NewReader(resp.Body, params["boundary"])
	return nil
}

// Read returns the next decoded frame, reconnecting once if the stream has
// gone away since the last call.
func (s *MJPEGSource) Read(ctx context.Context) (*vision.Frame, error) {
	if s.reader == nil {
		monitoring.Logf("camera stream down, reconnecting to %s", s.url)
		if err := s.connect(ctx); err != nil {
			return nil, err
		}
	}

	part, err := s.reader.NextPart()
	if err != nil {
		s.drop()
		return nil, fmt.Errorf("camera stream interrupted: %w", err)
	}
	defer part.Close()

	img, err := jpeg.Decode(part)
	if err != nil {
		// A single corrupt part does not invalidate the stream.
		return nil, fmt.Errorf("camera frame decode: %w", err)
	}

	return vision.FrameFromImage(img), nil
}

// drop tears down the current connection so the next Read re-dials.
func (s *MJPEGSource) drop() {
	if s.resp != nil {
		s.resp.Body.Close()
	}
	s.resp = nil
	s.reader = nil
}

// Name identifies the source in logs.
func (s *MJPEGSource) Name() string { return "mjpeg:" + s.url }

// Close shuts the stream down.
func (s *MJPEGSource) Close() error {
	s.drop()
	return nil
}
