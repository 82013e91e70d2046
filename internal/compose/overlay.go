package compose

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	// Overlay decode support. The collaborator serves PNG and JPEG;
	// GIF and WebP show up in user-supplied media.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/davidgeorgehope/hotmike.app/internal/httputil"
)

// ErrOverlaySuperseded is returned when a newer SetOverlayImage or
// ClearOverlay call landed while this load was in flight.
var ErrOverlaySuperseded = errors.New("overlay load superseded")

const maxOverlayBytes = 32 << 20

var overlayClient = &http.Client{Timeout: 30 * time.Second}

type overlayFetcher func(ctx context.Context, url string) ([]byte, error)

func fetchOverlay(ctx context.Context, url string) ([]byte, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return os.ReadFile(url)
	}
	resp, err := httputil.Do(ctx, overlayClient, http.MethodGet, url, nil, nil, httputil.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("overlay fetch: unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxOverlayBytes))
}

// SetOverlayImage fetches and decodes an image and installs it as the
// overlay. If a newer call or ClearOverlay arrives while the load is
// in flight, the stale result is discarded and ErrOverlaySuperseded is
// returned; the newer state is untouched.
func (c *Compositor) SetOverlayImage(ctx context.Context, url string) error {
	gen := c.overlayGen.Add(1)

	data, err := c.fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch overlay: %w", err)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode overlay: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.overlayGen.Load() {
		return ErrOverlaySuperseded
	}
	c.overlayImg = img
	log.Info("overlay loaded",
		"format", format,
		"width", img.Bounds().Dx(),
		"height", img.Bounds().Dy(),
	)
	return nil
}

// ClearOverlay removes the overlay and invalidates any in-flight load.
func (c *Compositor) ClearOverlay() {
	c.overlayGen.Add(1)
	c.mu.Lock()
	c.overlayImg = nil
	c.mu.Unlock()
}

// HasOverlay reports whether an overlay image is currently installed.
func (c *Compositor) HasOverlay() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.overlayImg != nil
}
