package simulation

import (
	"testing"
	"time"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAudit_NoSnapshots(t *testing.T) {
	_, err := NewAudit(time.Minute).GenerateReport()
	assert.ErrorIs(t, err, ErrNoSnapshots)
}

func TestAudit_SnapshotInterval(t *testing.T) {
	a := NewAudit(time.Minute)
	a.AddAccountSnapshot(p("100"), p("100"), t0)
	a.AddAccountSnapshot(p("100"), p("90"), t0.Add(30*time.Second))
	a.AddAccountSnapshot(p("100"), p("110"), t0.Add(time.Minute))

	assert.Len(t, a.accountSnapshots, 2)
}

func TestAudit_GenerateReport(t *testing.T) {
	a := NewAudit(0)
	a.AddAccountSnapshot(p("1000"), p("1000"), t0)
	a.AddAccountSnapshot(p("1000"), p("1100"), t0.Add(time.Hour))
	a.AddAccountSnapshot(p("1000"), p("880"), t0.Add(2*time.Hour))
	a.AddAccountSnapshot(p("1050"), p("1050"), t0.Add(3*time.Hour))

	a.AddTrade(common.Trade{GrossPnL: p("80"), NetPnL: p("75"), Fees: p("5"), Duration: time.Hour})
	a.AddTrade(common.Trade{GrossPnL: p("-20"), NetPnL: p("-25"), Fees: p("5"), Duration: 3 * time.Hour})

	report, err := a.GenerateReport()
	require.NoError(t, err)

	assertPoint(t, "1000", report.InitialEquity)
	assertPoint(t, "1050", report.FinalEquity)
	assertPoint(t, "5", report.TotalProfit)
	assertPoint(t, "20", report.MaxDrawdown)
	assertPoint(t, "0.25", report.RecoveryFactor)

	assert.Equal(t, 2, report.TotalTrades)
	assert.Equal(t, 1, report.WinningTrades)
	assert.Equal(t, 1, report.LosingTrades)
	assertPoint(t, "50", report.WinRate)
	assertPoint(t, "60", report.GrossPnL)
	assertPoint(t, "50", report.NetPnL)
	assertPoint(t, "10", report.TotalFees)
	assertPoint(t, "3", report.ProfitFactor)
	assertPoint(t, "25", report.Expectancy)
	assertPoint(t, "3", report.RiskRewardRatio)
	assert.Equal(t, 2*time.Hour, report.AverageTradeDuration)
}

func TestAudit_Annualize(t *testing.T) {
	assertPoint(t, "0", annualize(p("1"), 365))
	assertPoint(t, "10", annualize(p("1.1"), 365).Round(0))
	assertPoint(t, "0", annualize(p("50"), 1))
	assertPoint(t, "0", annualize(p("0"), 10))
}

func TestReport_Print(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Report{TotalTrades: 3}.Print(zap.New(core))

	assert.Equal(t, 1, logs.FilterMessage("performance report").Len())
	entries := logs.FilterMessage("trade statistics").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].ContextMap()["total_trades"])
}
