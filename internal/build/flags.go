// SPDX-License-Identifier: MIT
//
// Package build exposes metadata injected at link time, for example:
//
//	go build -ldflags "-X audioviz/internal/build.buildName=audioviz \
//	    -X audioviz/internal/build.buildVersion=0.1.0 ..."
package build

import (
	"errors"
	"fmt"
)

// Info describes the running binary.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", i.Name, i.Version, i.Commit, i.Time)
}

const description = "Real-time audio spectrum and waveform visualizer"

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
)

var info = Info{
	Name:        "audioviz",
	Description: description,
	Time:        "unknown",
	Commit:      "unknown",
	Version:     "dev",
}

// Initialize copies the link-time values into Info. It returns an error
// naming every missing value; Info keeps its development defaults in that
// case.
func Initialize() error {
	var errs []error
	if buildName == "" {
		errs = append(errs, errors.New("BuildName is required"))
	}
	if buildTime == "" {
		errs = append(errs, errors.New("BuildTime is required"))
	}
	if buildCommit == "" {
		errs = append(errs, errors.New("BuildCommit is required"))
	}
	if buildVersion == "" {
		errs = append(errs, errors.New("BuildVersion is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	info = Info{
		Name:        buildName,
		Description: description,
		Time:        buildTime,
		Commit:      buildCommit,
		Version:     buildVersion,
	}
	return nil
}

// Get returns the current build information.
func Get() Info {
	return info
}
