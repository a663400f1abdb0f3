package server

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
	"stock-dashboard/src/utils"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// DashboardServer
// -----------------------------------------------------------------------------

type DashboardServer struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	Source    interfaces.IMarketSource
	Cache     interfaces.IHistoryCache
	Scheduler *utils.MarketScheduler
	engine    *gin.Engine
	series    *utils.SeriesCache

	// Ticker list snapshot from the startup scrape
	tickers   []models.MTicker
	tickersMu sync.RWMutex

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *models.MChartData
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client

	// Active chart subscriptions, key -> selection (for the refresh loop)
	subscriptions sync.Map

	stop chan struct{}
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewDashboardServer(
	cfg *models.MConfig,
	log *logger.Logger,
	source interfaces.IMarketSource,
	cache interfaces.IHistoryCache,
	scheduler *utils.MarketScheduler,
) *DashboardServer {
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &DashboardServer{
		Config:    cfg,
		Logger:    log,
		Source:    source,
		Cache:     cache,
		Scheduler: scheduler,
		engine:    gin.Default(),
		// One week of daily candles per typical selection, budget ~200 selections
		series:     utils.NewSeriesCache(400_000, 15*time.Minute, cfg.LogLevel),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan *models.MChartData, 256),
		direct:     make(chan directMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stop:       make(chan struct{}),
	}

	// Local-only CORS, the page and the API share 127.0.0.1
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *DashboardServer) setupRoutes() {
	// Dashboard page
	s.engine.GET("/", s.getDashboard)

	// REST API endpoints
	s.engine.GET("/api/symbols", s.getSymbols)
	s.engine.GET("/api/history", s.getHistory)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/market-status", s.getMarketStatus)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *DashboardServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting dashboard server on http://%s", addr)

	go s.handleWebsockets()
	go s.refreshLoop()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) Stop() error {
	close(s.stop)
	return nil
}

// -----------------------------------------------------------------------------
// Ticker snapshot
// -----------------------------------------------------------------------------

// SetTickers replaces the listing snapshot and retargets the market scheduler.
func (s *DashboardServer) SetTickers(tickers []models.MTicker) {
	s.tickersMu.Lock()
	s.tickers = tickers
	s.tickersMu.Unlock()

	symbols := make([]string, 0, len(tickers))
	for _, t := range tickers {
		symbols = append(symbols, t.Symbol)
	}
	s.Scheduler.UpdateSymbols(symbols)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) Tickers() []models.MTicker {
	s.tickersMu.RLock()
	defer s.tickersMu.RUnlock()

	out := make([]models.MTicker, len(s.tickers))
	copy(out, s.tickers)
	return out
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *DashboardServer) getDashboard(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(dashboardPage(s.Config)))
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tickers": s.Tickers(),
		"default": s.Config.Source.DefaultSymbol,
	})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getHistory(c *gin.Context) {
	symbol := c.Query("symbol")
	start := c.Query("start")
	end := c.Query("end")

	payload, err := s.BuildChart(symbol, start, end)
	if err != nil {
		status := statusForError(err)
		s.Logger.Info("History request failed (%d): %v", status, err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, payload)
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default_symbol":     s.Config.Source.DefaultSymbol,
		"default_start_date": s.Config.Source.DefaultStartDate,
		"min_date":           minChartDate,
		"sma_window":         s.Config.Source.SMAWindow,
		"refresh_seconds":    s.Config.Source.RefreshSeconds,
	})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getHealth(c *gin.Context) {
	s.tickersMu.RLock()
	tickerCount := len(s.tickers)
	s.tickersMu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"tickers":       tickerCount,
		"cached_series": s.series.Size(),
		"last_fetch":    s.Source.Metrics(),
	})
}

// -----------------------------------------------------------------------------

func (s *DashboardServer) getMarketStatus(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusOK, gin.H{"any_open": s.Scheduler.AnyMarketOpen()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"open":   s.Scheduler.IsMarketOpen(symbol),
	})
}
