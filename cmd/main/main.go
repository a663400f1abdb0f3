package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-dashboard/src/config"
	"stock-dashboard/src/data_source/yahoo"
	"stock-dashboard/src/interfaces"
	"stock-dashboard/src/logger"
	"stock-dashboard/src/models"
	"stock-dashboard/src/network"
	"stock-dashboard/src/server"
	"stock-dashboard/src/storage"
	"stock-dashboard/src/utils"
	"stock-dashboard/src/window"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	noWindow := flag.Bool("no-window", false, "serve the dashboard without opening a native window")
	flag.Parse()

	// Load config from YAML file
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(conf.LogLevel, conf.Name)

	// 1. Storage (candle cache)
	var cache interfaces.IHistoryCache

	switch conf.Storage.DBType {
	case "postgres":
		cache, err = storage.NewPostgresCache(conf.MConfig, appLogger)
	default:
		// Default to SQLite
		cache, err = storage.NewSQLiteCache(conf.MConfig, appLogger)
	}

	if err != nil {
		appLogger.Critical("Failed to init cache: %v", err)
	}
	if err := cache.Initialize(); err != nil {
		appLogger.Critical("Failed to migrate cache: %v", err)
	}
	defer cache.Close()

	// 2. Network + scraping source
	var fetcher interfaces.INetworkManager = network.NewPageFetcher(conf.MConfig, appLogger)
	var source interfaces.IMarketSource = yahoo.NewSource(conf.MConfig, fetcher)

	// 3. Market scheduler (retargeted once the listing arrives)
	scheduler := utils.NewMarketScheduler(
		[]string{conf.Source.DefaultSymbol},
		logger.NewLogger(conf.LogLevel, "MarketScheduler"),
	)

	// 4. Dashboard server
	srv := server.NewDashboardServer(conf.MConfig, appLogger, source, cache, scheduler)

	// 5. Startup ticker list
	tickers := loadTickers(source, cache, conf.MConfig, appLogger)
	srv.SetTickers(tickers)

	// 6. Cache housekeeping
	if err := cache.CleanupOldData(); err != nil {
		appLogger.Warning("Cache cleanup failed: %v", err)
	}

	// 7. Start server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()
	defer srv.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	if *noWindow || !conf.Window.Enabled {
		appLogger.Info("Running headless. Dashboard at http://%s:%d/", conf.Host, conf.Port)
		<-quit
		appLogger.Info("Shutting down...")
		return
	}

	// 8. Native window
	win := window.New(conf.MConfig)
	windowClosed := make(chan error, 1)
	go func() {
		windowClosed <- win.Open(ctx)
	}()

	select {
	case err := <-windowClosed:
		if err != nil {
			appLogger.Error("Window error: %v. Dashboard stays reachable at http://%s:%d/", err, conf.Host, conf.Port)
			<-quit
		} else {
			appLogger.Info("Window closed.")
		}
	case <-quit:
		appLogger.Info("Shutting down...")
		win.Close()
	}
}

// -----------------------------------------------------------------------------

// loadTickers scrapes the most-active listing, falling back to the cached
// snapshot and then to the configured symbols so the dropdown never starts
// empty.
func loadTickers(
	source interfaces.IMarketSource,
	cache interfaces.IHistoryCache,
	conf *models.MConfig,
	log *logger.Logger,
) []models.MTicker {
	log.Info("Fetching ticker listing...")

	tickers, err := source.ListMostActive()
	if err == nil {
		if serr := cache.SaveTickers(tickers); serr != nil {
			log.Warning("Failed to persist ticker listing: %v", serr)
		}
		return tickers
	}
	log.Warning("Listing scrape failed: %v", err)

	tickers, cerr := cache.LoadTickers()
	if cerr == nil && len(tickers) > 0 {
		log.Info("Using cached listing of %d tickers", len(tickers))
		return tickers
	}

	log.Warning("No cached listing, using configured fallback symbols")
	now := time.Now().UTC()
	symbols := conf.Source.FallbackSymbols
	if len(symbols) == 0 {
		symbols = []string{conf.Source.DefaultSymbol}
	}

	out := make([]models.MTicker, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, models.MTicker{Symbol: s, FetchedAt: now})
	}
	return out
}
