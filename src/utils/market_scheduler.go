package utils

import (
	"sync"
	"time"

	"stock-dashboard/src/logger"
)

// -----------------------------------------------------------------------------
// MarketScheduler tracks the trading calendars behind the listed symbols.
// The dashboard uses it for the market-status badge and to pause the live
// refresh loop outside trading hours.
// -----------------------------------------------------------------------------

type MarketScheduler struct {
	Calendars map[string]*TradingCalendar
	Logger    *logger.Logger
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(symbols []string, l *logger.Logger) *MarketScheduler {
	ms := &MarketScheduler{
		Calendars: make(map[string]*TradingCalendar),
		Logger:    l,
	}
	ms.UpdateSymbols(symbols)
	return ms
}

// -----------------------------------------------------------------------------

// UpdateSymbols replaces the tracked symbol set with a new listing snapshot.
func (ms *MarketScheduler) UpdateSymbols(symbols []string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.Calendars = make(map[string]*TradingCalendar)
	for _, symbol := range symbols {
		if cal := GetCalendar(symbol); cal != nil {
			ms.Calendars[symbol] = cal
		}
	}

	uniqueCals := make(map[*TradingCalendar]bool)
	for _, cal := range ms.Calendars {
		uniqueCals[cal] = true
	}

	ms.Logger.Info("MarketScheduler: Mapped %d symbols to %d unique calendars.",
		len(symbols), len(uniqueCals))
}

// -----------------------------------------------------------------------------

// IsMarketOpen reports whether the exchange behind one symbol trades right now.
// Unknown symbols fall back to the NYSE calendar.
func (ms *MarketScheduler) IsMarketOpen(symbol string) bool {
	ms.mu.RLock()
	cal := ms.Calendars[symbol]
	ms.mu.RUnlock()

	if cal == nil {
		cal = GetCalendar(symbol)
	}
	if cal == nil {
		return false
	}
	return cal.IsOpenOnMinute(time.Now().UTC())
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if ANY tracked markets are currently open
func (ms *MarketScheduler) AnyMarketOpen() bool {
	now := time.Now().UTC()

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	uniqueCals := make(map[*TradingCalendar]bool)
	for _, cal := range ms.Calendars {
		uniqueCals[cal] = true
	}

	if len(uniqueCals) == 0 {
		return false
	}

	for cal := range uniqueCals {
		if cal.IsOpenOnMinute(now) {
			return true
		}
	}

	return false
}
