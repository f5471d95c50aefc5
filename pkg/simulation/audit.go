package simulation

import (
	"errors"
	"math"
	"time"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

const (
	daysPerYear          = 365.25
	maxAnnualizedPercent = 1e12
)

var ErrNoSnapshots = errors.New("no account snapshots recorded")

type accountSnapshot struct {
	balance fixed.Point
	equity  fixed.Point
	t       time.Time
}

// Audit records account snapshots, at most one per interval, and every
// realized trade of a run.
type Audit struct {
	minSnapshotInterval time.Duration

	accountSnapshots []accountSnapshot
	trades           []common.Trade
}

func NewAudit(minSnapshotInterval time.Duration) *Audit {
	return &Audit{
		minSnapshotInterval: minSnapshotInterval,
	}
}

func (a *Audit) AddAccountSnapshot(balance, equity fixed.Point, t time.Time) {
	if len(a.accountSnapshots) == 0 ||
		t.Sub(a.accountSnapshots[len(a.accountSnapshots)-1].t) >= a.minSnapshotInterval {
		a.addSnapshot(balance, equity, t)
	}
}

func (a *Audit) AddTrade(trade common.Trade) {
	a.trades = append(a.trades, trade)
}

func (a *Audit) Trades() []common.Trade {
	return a.trades
}

func (a *Audit) GenerateReport() (Report, error) {
	if len(a.accountSnapshots) == 0 {
		return Report{}, ErrNoSnapshots
	}

	first := a.accountSnapshots[0]
	last := a.accountSnapshots[len(a.accountSnapshots)-1]

	report := Report{
		StartDate:     first.t,
		EndDate:       last.t,
		InitialEquity: first.equity,
		FinalEquity:   last.equity,
		FinalBalance:  last.balance,
	}

	if report.InitialEquity.IsPositive() {
		ratio := report.FinalEquity.Div(report.InitialEquity)
		report.TotalProfit = ratio.Sub(fixed.One).Mul(fixed.Hundred).Rescale(2)
		report.AnnualizedReturn = annualize(ratio, a.dayCount())
	}

	maxDrawdown := a.maxDrawdown()
	a.tradeStatistics(&report)

	if maxDrawdown.IsPositive() {
		report.RecoveryFactor = report.TotalProfit.Div(maxDrawdown.Mul(fixed.Hundred)).Rescale(5)
	}
	report.MaxDrawdown = maxDrawdown.Mul(fixed.Hundred).Rescale(2)

	dailyReturns := a.dailyReturns()
	meanReturn := fixed.Mean(dailyReturns)
	vol := fixed.StdDev(dailyReturns, meanReturn)

	if !meanReturn.IsZero() && !vol.IsZero() {
		report.AnnualizedVolatility = vol.Mul(fixed.Sqrt252).Mul(fixed.Hundred).Rescale(2)
		report.SharpeRatio = fixed.SharpeRatio(dailyReturns, fixed.Zero).Mul(fixed.Sqrt252).Rescale(5)
		report.SortinoRatio = fixed.SortinoRatio(dailyReturns, fixed.Zero).Mul(fixed.Sqrt252).Rescale(5)
	}

	return report, nil
}

// annualize compounds ratio over a 365.25 day year. Results beyond what a
// Point can hold are reported as zero.
func annualize(ratio fixed.Point, days int) fixed.Point {
	r, ok := ratio.Float64()
	if !ok || r <= 0 || days <= 0 {
		return fixed.Zero
	}
	annual := (math.Pow(r, daysPerYear/float64(days)) - 1) * 100
	if math.IsNaN(annual) || math.Abs(annual) > maxAnnualizedPercent {
		return fixed.Zero
	}
	return fixed.FromFloat64(annual).Rescale(2)
}

func (a *Audit) tradeStatistics(report *Report) {
	var (
		totalDuration time.Duration
		totalProfit   fixed.Point
		totalLoss     fixed.Point
	)

	for _, trade := range a.trades {
		report.TotalTrades++
		report.GrossPnL = report.GrossPnL.Add(trade.GrossPnL)
		report.NetPnL = report.NetPnL.Add(trade.NetPnL)
		report.TotalFees = report.TotalFees.Add(trade.Fees)
		totalDuration += trade.Duration

		if trade.IsWin() {
			totalProfit = totalProfit.Add(trade.NetPnL)
			report.WinningTrades++
		} else {
			totalLoss = totalLoss.Add(trade.NetPnL.Neg())
			report.LosingTrades++
		}
	}

	if report.WinningTrades > 0 {
		report.AverageWin = totalProfit.DivInt(report.WinningTrades)
	}
	if report.LosingTrades > 0 {
		report.AverageLoss = totalLoss.DivInt(report.LosingTrades)
	}
	if totalLoss.IsPositive() {
		report.ProfitFactor = totalProfit.Div(totalLoss).Rescale(5)
	}
	if report.AverageLoss.IsPositive() {
		report.RiskRewardRatio = report.AverageWin.Div(report.AverageLoss).Rescale(5)
	}
	if report.TotalTrades > 0 {
		report.Expectancy = totalProfit.Sub(totalLoss).DivInt(report.TotalTrades)
		report.AverageTradeDuration = totalDuration / time.Duration(report.TotalTrades)
		report.WinRate = fixed.FromInt(report.WinningTrades, 0).Mul(fixed.Hundred).DivInt(report.TotalTrades).Rescale(2)
	}
}

// maxDrawdown is the largest peak to trough equity decline as a fraction
// of the peak.
func (a *Audit) maxDrawdown() fixed.Point {
	drawdown := fixed.Zero
	peak := a.accountSnapshots[0].equity
	for _, snapshot := range a.accountSnapshots {
		peak = fixed.Max(peak, snapshot.equity)
		if !peak.IsPositive() {
			continue
		}
		drawdown = fixed.Max(drawdown, peak.Sub(snapshot.equity).Div(peak))
	}
	return drawdown
}

func (a *Audit) addSnapshot(balance, equity fixed.Point, t time.Time) {
	a.accountSnapshots = append(a.accountSnapshots, accountSnapshot{
		balance: balance,
		equity:  equity,
		t:       t,
	})
}

func (a *Audit) dayCount() int {
	if len(a.accountSnapshots) < 2 {
		return 1
	}
	start := a.accountSnapshots[0].t
	end := a.accountSnapshots[len(a.accountSnapshots)-1].t
	return int(end.Sub(start).Hours()/24) + 1
}

// dailyReturns compares the first equity seen on each UTC day with the
// first equity of the previous day.
func (a *Audit) dailyReturns() []fixed.Point {
	var dailyReturns []fixed.Point
	if len(a.accountSnapshots) < 2 {
		return dailyReturns
	}

	prevDate := a.accountSnapshots[0].t.Truncate(24 * time.Hour)
	prevEquity := a.accountSnapshots[0].equity

	for _, snapshot := range a.accountSnapshots[1:] {
		currDate := snapshot.t.Truncate(24 * time.Hour)
		if !currDate.After(prevDate) || !prevEquity.IsPositive() {
			continue
		}
		dailyReturns = append(dailyReturns, snapshot.equity.Div(prevEquity).Sub(fixed.One))
		prevDate = currDate
		prevEquity = snapshot.equity
	}

	return dailyReturns
}
