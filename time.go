package auth

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// IsOutsideThresholdPeriod reports whether at is further in the past than
// the given period, expressed in time.ParseDuration notation e.g. "24h".
func IsOutsideThresholdPeriod(at time.Time, period string) (bool, error) {
	d, err := time.ParseDuration(period)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid threshold period")
	}

	return time.Since(at) > d, nil
}
