package render

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"drinklog/storage"
	"drinklog/utils"
)

// ErrBrowserNotFound is returned by Snapshot when no Chrome or Chromium
// binary is available.
var ErrBrowserNotFound = errors.New("snapshot: no chrome binary found")

const (
	pageTimeout  = 60 * time.Second
	settleDelay  = 1500 * time.Millisecond
	screenWidth  = 1280
	screenHeight = 800
)

// SnapshotOptions configures the headless browser run.
type SnapshotOptions struct {
	ChromeBin   string
	Concurrency int
	RateLimitMs int
	MaxRetries  int
}

// Snapshotter saves a PNG next to each HTML page by loading it in headless
// Chrome.
type Snapshotter struct {
	opts   SnapshotOptions
	logger *utils.Logger
	pool   *utils.WorkerPool
	retry  *utils.RetryConfig
}

func NewSnapshotter(opts SnapshotOptions, logger *utils.Logger) *Snapshotter {
	return &Snapshotter{
		opts:   opts,
		logger: logger,
		pool:   utils.NewWorkerPool(opts.Concurrency, opts.RateLimitMs),
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// Snapshot captures every page and returns the PNG paths written, sorted.
// Duplicate pages are captured once. Pages that still fail after retries are
// reported together in the returned error; the others are kept.
func (s *Snapshotter) Snapshot(ctx context.Context, pages []string) ([]string, error) {
	if len(pages) == 0 {
		return nil, nil
	}

	chromeBin := s.opts.ChromeBin
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}
	if chromeBin == "" {
		return nil, ErrBrowserNotFound
	}
	if _, err := os.Stat(chromeBin); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserNotFound, err)
	}
	s.logger.Info("[snapshot] Using browser binary: %s", chromeBin)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("allow-file-access-from-files", true),
		chromedp.WindowSize(screenWidth, screenHeight),
		chromedp.ExecPath(chromeBin),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("snapshot: start browser: %w", err)
	}

	var (
		mu      sync.Mutex
		written []string
		errs    []error
	)
	seen := utils.NewStringSet()

	for _, p := range pages {
		abs, err := filepath.Abs(p)
		if err != nil {
			errs = append(errs, fmt.Errorf("snapshot %s: %w", p, err))
			continue
		}
		if !seen.Add(abs) {
			continue
		}

		page := abs
		s.pool.Submit(func() error {
			out := PNGPath(page)
			err := s.retry.Do(ctx, "snapshot "+filepath.Base(page), func() error {
				return capture(browserCtx, page, out)
			})
			if err != nil {
				s.logger.Warn("[snapshot] %s failed: %v", filepath.Base(page), err)
				return err
			}

			mu.Lock()
			written = append(written, out)
			mu.Unlock()
			s.logger.Debug("[snapshot] Saved %s", out)
			return nil
		})
	}
	errs = append(errs, s.pool.Wait())

	sort.Strings(written)
	s.logger.Info("[snapshot] Saved %d of %d pages as PNG", len(written), seen.Size())
	return written, errors.Join(errs...)
}

// capture opens page in a new tab of the running browser and writes a
// full-page screenshot to out.
func capture(browserCtx context.Context, page, out string) error {
	ctx, cancel := chromedp.NewContext(browserCtx)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, pageTimeout)
	defer cancelTimeout()

	var buf []byte
	if err := chromedp.Run(ctx,
		chromedp.Navigate(FileURL(page)),
		chromedp.Sleep(settleDelay),
		chromedp.FullScreenshot(&buf, 100),
	); err != nil {
		return err
	}
	return storage.WriteFileAtomic(out, buf)
}

// PNGPath swaps the extension of an HTML path for .png.
func PNGPath(page string) string {
	return strings.TrimSuffix(page, filepath.Ext(page)) + ".png"
}

// FileURL turns an absolute path into a file:// URL.
func FileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
