package journal

import (
	"bytes"
	"os"
	"strings"
	"text/template"
	"time"
)

// BacktestRun mirrors the runs table.
type BacktestRun struct {
	RunID    string
	Created  time.Time
	Strategy string
	// Contracts traded in this run, in declared order.
	Contracts []string
	Interval  string
	Dataset   string
	Params    string

	Start time.Time
	End   time.Time

	Trades int
	Wins   int
	Losses int

	StartBalance float64
	EndBalance   float64

	NetPnL       float64
	ReturnPct    float64
	WinRate      float64
	ProfitFactor float64
	MaxDDPct     float64
	Sharpe       float64
	Commission   float64
	Unfilled     int

	// Status is running, finished or aborted.
	Status  string
	OrgPath string

	Notes []string
}

var backtestOrgFuncs = template.FuncMap{
	"mul100": func(x float64) float64 { return x * 100.0 },
	"join":   strings.Join,
	"orTime": func(t time.Time) time.Time {
		if t.IsZero() {
			return time.Now()
		}
		return t
	},
}

var backtestOrg = template.Must(template.New("backtest").Funcs(backtestOrgFuncs).Parse(BacktestOrgTemplate))

// RenderOrg returns the run as an Org-mode block.
func (v *BacktestRun) RenderOrg() (string, error) {
	buf := new(bytes.Buffer)
	if err := backtestOrg.Execute(buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteBacktestOrg renders the run to OrgPath.
func (v *BacktestRun) WriteBacktestOrg() error {
	s, err := v.RenderOrg()
	if err != nil {
		return err
	}
	return os.WriteFile(v.OrgPath, []byte(s), 0644)
}

const BacktestOrgTemplate = `
* BACKTEST: {{.Strategy}} {{join .Contracts " "}} {{if .Interval}}{{.Interval}}{{else}}(interval?){{end}}
:PROPERTIES:
:RUN_ID:      {{if .RunID}}{{.RunID}}{{else}}(run-id?){{end}}
:STRATEGY:    {{.Strategy}}
:CONTRACTS:   {{join .Contracts ","}}
:INTERVAL:    {{if .Interval}}{{.Interval}}{{else}}(interval?){{end}}
:DATASET:     {{if .Dataset}}{{.Dataset}}{{else}}(dataset?){{end}}
:STATUS:      {{if .Status}}{{.Status}}{{else}}running{{end}}
:START_DATE:  {{.Start.Format "2006-01-02"}}
:END_DATE:    {{.End.Format "2006-01-02"}}
:START_BAL:   {{printf "%.2f" .StartBalance}}
:END_BAL:     {{printf "%.2f" .EndBalance}}
:NET_PNL:     {{printf "%.2f" .NetPnL}}
:RETURN_PCT:  {{printf "%.2f" .ReturnPct}}
:MAX_DD_PCT:  {{printf "%.2f" .MaxDDPct}}
:SHARPE:      {{printf "%.2f" .Sharpe}}
:TRADES:      {{.Trades}}
:WINS:        {{.Wins}}
:LOSSES:      {{.Losses}}
:WIN_RATE:    {{printf "%.2f" (mul100 .WinRate)}}
:PROFIT_FAC:  {{printf "%.2f" .ProfitFactor}}
:COMMISSION:  {{printf "%.2f" .Commission}}
:UNFILLED:    {{.Unfilled}}
:CREATED:     [{{(orTime .Created).Format "2006-01-02 Mon 15:04"}}]
:END:

** Strategy Parameters
| Parameter | Value |
|-----------+-------|
| Params    | {{if .Params}}{{.Params}}{{else}}(defaults){{end}} |

** Performance Summary
- Net PnL:          *{{printf "%.2f" .NetPnL}}*
- Return:           *{{printf "%.2f" .ReturnPct}}%*
- Max Drawdown:     *{{printf "%.2f" .MaxDDPct}}%*
- Sharpe:           *{{printf "%.2f" .Sharpe}}*
- Win Rate:         *{{printf "%.2f" (mul100 .WinRate)}}%*
- Profit Factor:    *{{printf "%.2f" .ProfitFactor}}*

** Trade Distribution
| Outcome | Count |
|---------+-------|
| Wins    | {{.Wins}} |
| Losses  | {{.Losses}} |
| Total   | {{.Trades}} |

{{- if .Notes }}
** Observations
{{- range .Notes }}
- {{.}}
{{- end }}
{{- end }}
`
