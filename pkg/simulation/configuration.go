package simulation

import (
	"time"

	"github.com/peter-kozarec/simex/pkg/common"
	"github.com/peter-kozarec/simex/pkg/utility/fixed"
)

type Configuration struct {
	FundId           common.FundId
	StartBalance     fixed.Point
	AllowShort       bool
	SnapshotInterval time.Duration
	BarPeriod        common.BarPeriod
}
