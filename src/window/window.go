package window

import (
	"context"
	"fmt"
	"time"

	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"

	"github.com/chromedp/chromedp"
)

// -----------------------------------------------------------------------------
// Native shell: Chrome in app mode pointed at the local dashboard server.
// The browser chrome (tabs, address bar) is hidden, giving a plain desktop
// window around the web layout.
// -----------------------------------------------------------------------------

type Window struct {
	Config *models.MConfig
	Logger *logger.Logger
	cancel context.CancelFunc
	ctx    context.Context
}

// -----------------------------------------------------------------------------

func New(cfg *models.MConfig) *Window {
	return &Window{
		Config: cfg,
		Logger: logger.NewLogger(cfg.LogLevel, "Window"),
	}
}

// -----------------------------------------------------------------------------

// Open launches the app window and blocks until it is closed or the parent
// context is cancelled.
func (w *Window) Open(parentCtx context.Context) error {
	url := fmt.Sprintf("http://%s:%d/", w.Config.Host, w.Config.Port)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("app", url),
		chromedp.Flag("headless", false),
		chromedp.Flag("disable-gpu", false),
		chromedp.Flag("window-size", fmt.Sprintf("%d,%d", w.Config.Window.Width, w.Config.Window.Height)),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parentCtx, opts...)
	ctx, cancelCtx := chromedp.NewContext(allocCtx, chromedp.WithLogf(w.Logger.Debug))

	w.ctx = ctx
	w.cancel = func() {
		cancelCtx()
		cancelAlloc()
	}

	w.Logger.Info("Opening dashboard window at %s", url)
	if err := chromedp.Run(ctx); err != nil {
		w.cancel()
		return fmt.Errorf("failed to launch browser window: %w", err)
	}

	// Blocks until the user closes the window or parentCtx is cancelled
	select {
	case <-ctx.Done():
	case <-parentCtx.Done():
	}
	return nil
}

// -----------------------------------------------------------------------------

// Close tears the browser down, giving it a moment to exit cleanly.
func (w *Window) Close() {
	if w.cancel == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if w.ctx != nil {
		if err := chromedp.Run(ctx, chromedp.Stop()); err != nil {
			w.Logger.Debug("Error during window shutdown: %v", err)
		}
	}
	w.cancel()
}
