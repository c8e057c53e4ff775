package widget

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// Default capture parameters, sized like a home-screen medium widget.
const (
	DefaultWidth      = 360
	DefaultHeight     = 170
	DefaultTimeoutSec = 30
)

// CaptureOptions defines parameters for a Chromium-based screenshot capture.
type CaptureOptions struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/widgets/DDayWidget?family=small".
	URL string

	// OutputPath is where the PNG screenshot will be written.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation.
	Timeout time.Duration
}

// CapturePNG launches a headless Chromium via chromedp, navigates to
// opts.URL, waits for the widget root to carry data-ready="true" and writes
// a PNG screenshot of the viewport.
func CapturePNG(parentCtx context.Context, opts CaptureOptions) error {
	if opts.URL == "" {
		return fmt.Errorf("capture: URL is required")
	}
	if opts.OutputPath == "" {
		return fmt.Errorf("capture: OutputPath is required")
	}
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		// 폰트 렌더링이 끝날 시간을 조금 준다.
		chromedp.Sleep(200 * time.Millisecond),
		chromedp.CaptureScreenshot(&png),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	// 읽는 쪽이 반쯤 쓰인 파일을 보지 않도록 rename 으로 교체한다.
	tmp := opts.OutputPath + ".tmp"
	if err := os.WriteFile(tmp, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	if err := os.Rename(tmp, opts.OutputPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}
	return nil
}

// Capturer renders a widget kind/family to disk.
type Capturer interface {
	Capture(ctx context.Context, kind string, family Family) error
}

// ChromeCapturer captures pages served by a running Host.
type ChromeCapturer struct {
	BaseURL   string
	OutputDir string
	Width     int
	Height    int
}

// PreviewPath is where the PNG for kind/family lives under dir.
func PreviewPath(dir, kind string, family Family) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%s.png", kind, family))
}

func (c ChromeCapturer) Capture(ctx context.Context, kind string, family Family) error {
	u := fmt.Sprintf("%s/widgets/%s?family=%s", c.BaseURL, url.PathEscape(kind), family)
	return CapturePNG(ctx, CaptureOptions{
		URL:        u,
		OutputPath: PreviewPath(c.OutputDir, kind, family),
		Width:      c.Width,
		Height:     c.Height,
	})
}
