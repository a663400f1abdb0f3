package server

import (
	"strconv"
	"strings"
	"time"

	"stock-dashboard/src/models"
)

// -----------------------------------------------------------------------------
// Dashboard page. Single self-contained document: symbol dropdown, date
// pickers and an ECharts line chart fed by /api/history, live-updated
// over /ws. Placeholders are substituted from config at request time.
// -----------------------------------------------------------------------------

func dashboardPage(cfg *models.MConfig) string {
	r := strings.NewReplacer(
		"{{TITLE}}", cfg.Window.Title,
		"{{DEFAULT_SYMBOL}}", cfg.Source.DefaultSymbol,
		"{{DEFAULT_START}}", cfg.Source.DefaultStartDate,
		"{{MIN_DATE}}", minChartDate,
		"{{TODAY}}", time.Now().UTC().Format(chartDateLayout),
		"{{SMA_WINDOW}}", strconv.Itoa(cfg.Source.SMAWindow),
	)
	return r.Replace(pageTemplate)
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{TITLE}}</title>
<script src="https://cdn.jsdelivr.net/npm/echarts@5.5.0/dist/echarts.min.js"></script>
<style>
  body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; margin: 0; background: #fafafa; }
  header { text-align: center; padding: 16px 0 8px; }
  header h1 { margin: 0; font-size: 24px; }
  .layout { display: flex; gap: 16px; padding: 16px; }
  .sidebar { flex: 0 0 260px; background: #f1f3f5; border-radius: 8px; padding: 16px; }
  .sidebar h4 { margin: 12px 0 6px; }
  .sidebar select, .sidebar input { width: 100%; padding: 6px; box-sizing: border-box; }
  .main { flex: 1; }
  #chart { width: 100%; height: 600px; background: #fff; border-radius: 8px; }
  #status { margin-top: 16px; font-size: 13px; color: #495057; }
  .badge { display: inline-block; padding: 2px 8px; border-radius: 10px; font-size: 12px; color: #fff; }
  .badge.open { background: #2f9e44; }
  .badge.closed { background: #868e96; }
  table.stats { width: 100%; font-size: 13px; margin-top: 8px; border-collapse: collapse; }
  table.stats td { padding: 2px 0; }
  table.stats td:last-child { text-align: right; font-variant-numeric: tabular-nums; }
</style>
</head>
<body>
<header><h1>{{TITLE}}</h1></header>
<div class="layout">
  <div class="sidebar">
    <h4>Select a Stock</h4>
    <select id="symbol"></select>
    <h4>Select Start Date</h4>
    <input type="date" id="start" min="{{MIN_DATE}}" max="{{TODAY}}" value="{{DEFAULT_START}}">
    <h4>Select End Date</h4>
    <input type="date" id="end" min="{{MIN_DATE}}" max="{{TODAY}}" value="{{TODAY}}">
    <h4>Market <span id="market" class="badge closed">closed</span></h4>
    <table class="stats" id="stats"></table>
    <div id="status"></div>
  </div>
  <div class="main"><div id="chart"></div></div>
</div>
<script>
(function () {
  var chart = echarts.init(document.getElementById('chart'));
  chart.setOption({ title: { text: 'Loading Data...', left: 'center' } });

  var symbolSel = document.getElementById('symbol');
  var startInput = document.getElementById('start');
  var endInput = document.getElementById('end');

  function selection() {
    return { symbol: symbolSel.value, start: startInput.value, end: endInput.value };
  }

  function fmt(v) { return (typeof v === 'number') ? v.toFixed(2) : v; }

  function render(p) {
    chart.setOption({
      title: { text: p.title, left: 'center' },
      tooltip: { trigger: 'axis' },
      legend: { data: ['Adj Close', 'SMA ' + p.sma_window], top: 28 },
      xAxis: { type: 'category', data: p.dates },
      yAxis: { type: 'value', scale: true },
      series: [
        { name: 'Adj Close', type: 'line', data: p.adj_close, showSymbol: false },
        { name: 'SMA ' + p.sma_window, type: 'line', data: p.sma, showSymbol: false, lineStyle: { type: 'dashed' } }
      ]
    }, true);

    var badge = document.getElementById('market');
    badge.textContent = p.market_open ? 'open' : 'closed';
    badge.className = 'badge ' + (p.market_open ? 'open' : 'closed');

    document.getElementById('stats').innerHTML =
      '<tr><td>Points</td><td>' + p.stats.points + '</td></tr>' +
      '<tr><td>Mean</td><td>' + fmt(p.stats.mean) + '</td></tr>' +
      '<tr><td>Std</td><td>' + fmt(p.stats.std) + '</td></tr>' +
      '<tr><td>Min / Max</td><td>' + fmt(p.stats.min) + ' / ' + fmt(p.stats.max) + '</td></tr>' +
      '<tr><td>Change</td><td>' + fmt(p.stats.change_percent * 100) + '%</td></tr>';

    document.getElementById('status').textContent =
      (p.from_cache ? 'cached' : 'scraped') + ' · ' + p.type.toLowerCase() +
      ' · ' + new Date(p.timestamp * 1000).toLocaleTimeString();
  }

  function load() {
    var sel = selection();
    if (!sel.symbol || !sel.start || !sel.end) return;
    chart.setOption({ title: { text: 'Loading Data...', left: 'center' } });
    fetch('/api/history?symbol=' + encodeURIComponent(sel.symbol) +
          '&start=' + sel.start + '&end=' + sel.end)
      .then(function (r) {
        if (!r.ok) return r.json().then(function (e) { throw new Error(e.error); });
        return r.json();
      })
      .then(render)
      .catch(function (e) {
        chart.setOption({ title: { text: 'Error: ' + e.message, left: 'center' } }, true);
      });
    if (ws && ws.readyState === WebSocket.OPEN) {
      ws.send(JSON.stringify({ command: 'subscribe', symbol: sel.symbol, start: sel.start, end: sel.end }));
    }
  }

  var ws = null;
  function connect() {
    ws = new WebSocket('ws://' + location.host + '/ws');
    ws.onmessage = function (ev) {
      var p = JSON.parse(ev.data);
      var sel = selection();
      if (p.symbol === sel.symbol) render(p);
    };
    ws.onclose = function () { setTimeout(connect, 3000); };
  }
  connect();

  fetch('/api/symbols').then(function (r) { return r.json(); }).then(function (data) {
    var tickers = data.tickers || [];
    tickers.forEach(function (t) {
      var opt = document.createElement('option');
      opt.value = t.symbol;
      opt.textContent = t.symbol + (t.name ? ' — ' + t.name : '');
      symbolSel.appendChild(opt);
    });
    symbolSel.value = '{{DEFAULT_SYMBOL}}';
    if (!symbolSel.value && tickers.length > 0) symbolSel.value = tickers[0].symbol;
    load();
  });

  symbolSel.addEventListener('change', load);
  startInput.addEventListener('change', load);
  endInput.addEventListener('change', load);
})();
</script>
</body>
</html>
`
