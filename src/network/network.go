package network

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"stock-dashboard/src/helpers"
	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
)

// -----------------------------------------------------------------------------

// retryBaseDelay seeds the exponential backoff between attempts.
const retryBaseDelay = 500 * time.Millisecond

// PageFetcher performs GET requests against the finance site with retries,
// proxy rotation and browser User-Agent headers. In-flight requests are
// bounded by the configured concurrent_requests.
type PageFetcher struct {
	Config       *models.MConfig
	ProxyManager interfaces.IProxyManager
	Client       *http.Client
	Logger       *logger.Logger
	sem          chan struct{}
}

// -----------------------------------------------------------------------------

func NewPageFetcher(cfg *models.MConfig, log *logger.Logger) *PageFetcher {
	var proxies []string
	if cfg.Network.Enabled {
		proxies = cfg.Network.Proxies
	}

	slots := cfg.Network.ConcurrentRequests
	if slots <= 0 {
		slots = 1
	}

	pf := &PageFetcher{
		Config:       cfg,
		ProxyManager: helpers.NewProxyManager(proxies, cfg.Network.UserAgent),
		Logger:       log,
		sem:          make(chan struct{}, slots),
	}
	pf.Client = pf.createClient()
	return pf
}

// -----------------------------------------------------------------------------

func (pf *PageFetcher) createClient() *http.Client {
	transport := &http.Transport{}

	if pf.ProxyManager.HasProxies() {
		proxyStr, err := pf.ProxyManager.GetCurrentProxy()
		if err == nil && proxyStr != "" {
			proxyURL, err := url.Parse(proxyStr)
			if err == nil {
				transport.Proxy = http.ProxyURL(proxyURL)
			}
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   time.Duration(pf.Config.Network.RequestTimeout) * time.Second,
	}
}

// -----------------------------------------------------------------------------

func (pf *PageFetcher) rotateProxy() {
	if !pf.ProxyManager.HasProxies() {
		return
	}

	pf.ProxyManager.RotateProxy()
	pf.Client = pf.createClient()
}

// -----------------------------------------------------------------------------

// Get performs a GET request with backoff retries and proxy rotation.
func (pf *PageFetcher) Get(urlStr string, params map[string]string) ([]byte, error) {
	reqUrl, err := url.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	q := reqUrl.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	reqUrl.RawQuery = q.Encode()

	finalUrl := reqUrl.String()
	maxAttempts := pf.Config.Network.MaxRetries + 1

	pf.sem <- struct{}{}
	defer func() { <-pf.sem }()

	var body []byte
	attempt := 0

	err = helpers.RetryWithBackoff(maxAttempts, retryBaseDelay, func() error {
		if attempt > 0 {
			pf.rotateProxy()
		}
		attempt++

		b, ferr := pf.fetchOnce(finalUrl)
		if ferr != nil {
			pf.Logger.Info("Request failed (attempt %d/%d): %v", attempt, maxAttempts, ferr)
			return ferr
		}

		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("max retries exceeded: %w", err)
	}

	return body, nil
}

// -----------------------------------------------------------------------------

func (pf *PageFetcher) fetchOnce(finalUrl string) ([]byte, error) {
	req, err := http.NewRequest("GET", finalUrl, nil)
	if err != nil {
		return nil, err
	}

	// Yahoo rejects default Go clients, send a browser UA
	req.Header.Set("User-Agent", pf.ProxyManager.GetUserAgent())
	req.Header.Set("Accept", "text/html,application/json;q=0.9,*/*;q=0.8")

	resp, err := pf.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("blocked (status %d)", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
