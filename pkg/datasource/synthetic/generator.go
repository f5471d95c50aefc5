package synthetic

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/datasource"
	"github.com/peter-kozarec/simex/pkg/utility"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

const (
	tickGeneratorComponentName = "datasource.synthetic.generator"
	secondsPerYear             = 365.25 * 24 * 3600
)

// Params describe a geometric brownian motion quote stream. Drift and
// Volatility are annualized.
type Params struct {
	Symbol     string
	Start      time.Time
	StartPrice float64
	Spread     float64
	Drift      float64
	Volatility float64
	Interval   time.Duration
	Steps      int
	AvgVolume  float64
	Digits     int
	Seed       uint64
}

// TickGenerator produces reproducible ticks for a seed. Intervals are
// exponential around Params.Interval and clamped to [0.5, 3] times it.
type TickGenerator struct {
	params Params
	rng    *rand.Rand

	drift  float64
	shock  float64
	price  float64
	now    time.Time
	issued int
}

func NewTickGenerator(params Params) *TickGenerator {
	if params.Interval <= 0 {
		params.Interval = time.Second
	}
	if params.AvgVolume <= 0 {
		params.AvgVolume = 100
	}
	dt := params.Interval.Seconds() / secondsPerYear

	return &TickGenerator{
		params: params,
		rng:    rand.New(rand.NewPCG(params.Seed, params.Seed^0x9e3779b97f4a7c15)),
		drift:  (params.Drift - params.Volatility*params.Volatility/2) * dt,
		shock:  params.Volatility * math.Sqrt(dt),
		price:  params.StartPrice,
		now:    params.Start,
	}
}

func (g *TickGenerator) GetNext() (common.Tick, error) {
	if g.issued >= g.params.Steps {
		return common.Tick{}, datasource.ErrEof
	}
	g.issued++

	g.price *= math.Exp(g.drift + g.shock*g.rng.NormFloat64())
	g.now = g.now.Add(g.nextInterval())

	half := g.params.Spread / 2
	bid := fixed.FromFloat64(g.price - half).Round(g.params.Digits)
	ask := fixed.FromFloat64(g.price + half).Round(g.params.Digits)
	if !ask.Gt(bid) {
		ask = bid.Add(fixed.FromInt(1, g.params.Digits))
	}

	return common.Tick{
		Bid:         bid,
		Ask:         ask,
		BidVolume:   g.volume(),
		AskVolume:   g.volume(),
		Source:      tickGeneratorComponentName,
		Symbol:      g.params.Symbol,
		ExecutionId: utility.GetExecutionID(),
		TraceID:     utility.CreateTraceID(),
		TimeStamp:   g.now,
	}, nil
}

func (g *TickGenerator) nextInterval() time.Duration {
	avg := float64(g.params.Interval)
	interval := g.rng.ExpFloat64() * avg
	interval = math.Max(avg/2, math.Min(interval, avg*3))
	return time.Duration(interval)
}

func (g *TickGenerator) volume() fixed.Point {
	v := math.Round(g.params.AvgVolume * g.rng.ExpFloat64())
	return fixed.FromFloat64(math.Max(v, 1))
}
