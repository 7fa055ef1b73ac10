// Package version makes the version labels that builds are tagged
// with, and the goal that records them.
package version

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/looking-for-freedom/lff-sdm/pkg/goal"
)

// DateFormat is how the date is written in versions and timestamp
// annotations: UTC, most significant first, so that later means
// greater when compared as strings.
const DateFormat = "20060102150405"

// FormatDate formats a time in DateFormat, in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateFormat)
}

type Clock func() time.Time

// Versioner makes versions of the form `<prefix>-<date>`, e.g.,
// `1.0.0-20191025143000`. With a semver prefix, that is a semver
// pre-release version.
type Versioner struct {
	Prefix string
	Clock  Clock
}

func (v Versioner) now() time.Time {
	if v.Clock != nil {
		return v.Clock()
	}
	return time.Now()
}

func (v Versioner) Version() string {
	return v.Prefix + "-" + FormatDate(v.now())
}

// Validate checks the prefix makes versions that are valid semantic
// versions.
func (v Versioner) Validate() error {
	if _, err := semver.NewVersion(v.Version()); err != nil {
		return errors.Wrapf(err, "version prefix %q", v.Prefix)
	}
	return nil
}

// Goal returns the fulfillment of the version goal: it works out the
// version, writes it to the progress log, and gives it as the
// outcome's message.
func (v Versioner) Goal() goal.Fulfillment {
	return goal.Fulfillment{
		Name: "node-versioner",
		Execute: func(ctx context.Context, inv goal.Invocation) goal.Outcome {
			version := v.Version()
			if _, err := semver.NewVersion(version); err != nil {
				if inv.Logger != nil {
					inv.Logger.Log("err", err, "version", version)
				}
				return goal.Outcome{Code: 1, Message: fmt.Sprintf("Invalid version %q: %s", version, err)}
			}
			fmt.Fprintf(inv.Log, "Version %s\n", version)
			return goal.Success(version)
		},
	}
}
