package utils

import (
	"testing"
	"time"

	"stock-dashboard/src/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCalendarAlwaysResolves(t *testing.T) {
	for _, symbol := range []string{"AAPL", "SHEL.L", "7203.T", "UNKNOWN"} {
		cal := GetCalendar(symbol)
		require.NotNil(t, cal, "symbol %s", symbol)
		assert.NotNil(t, cal.Timezone)
	}
}

func TestFallbackCalendarTradingDays(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	cal := &TradingCalendar{Fallback: true, Timezone: ny}

	monday := time.Date(2024, 1, 8, 15, 0, 0, 0, ny)
	saturday := time.Date(2024, 1, 6, 15, 0, 0, 0, ny)

	assert.True(t, cal.IsTradingDay(monday))
	assert.False(t, cal.IsTradingDay(saturday))
}

func TestFallbackCalendarSessionMinutes(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	cal := &TradingCalendar{Fallback: true, Timezone: ny}

	monday := func(hour, minute int) time.Time {
		return time.Date(2024, 1, 8, hour, minute, 0, 0, ny)
	}

	assert.False(t, cal.IsOpenOnMinute(monday(9, 29)))
	assert.True(t, cal.IsOpenOnMinute(monday(9, 30)))
	assert.True(t, cal.IsOpenOnMinute(monday(15, 59)))
	assert.False(t, cal.IsOpenOnMinute(monday(16, 0)))
}

func TestMarketSchedulerTracksSymbols(t *testing.T) {
	ms := NewMarketScheduler([]string{"AAPL", "MSFT", "SHEL.L"}, logger.NewLogger("ERROR", "test"))
	assert.Len(t, ms.Calendars, 3)

	ms.UpdateSymbols([]string{"TSLA"})
	assert.Len(t, ms.Calendars, 1)
	assert.Contains(t, ms.Calendars, "TSLA")
}
