// Package build holds version information set at link time, e.g.
//
//	go build -ldflags "-X github.com/apoxy-dev/shorty/build.BuildVersion=1.2.3"
package build

import (
	"fmt"
	"strings"
)

var (
	devBuildVersion = "0.0.0-dev"
	BuildVersion    = "0.0.0-dev"
	BuildDate       = "n/a"
	CommitHash      = "n/a"
)

// IsDev returns true if the build is a development build.
func IsDev() bool {
	return strings.HasSuffix(BuildVersion, "-dev")
}

// Version returns the version string in the format of "X.Y.Z (<commit>), built <date>".
func Version() string {
	if BuildVersion == devBuildVersion {
		return BuildVersion
	}
	return fmt.Sprintf("%s (%s), built %s", BuildVersion, CommitHash, BuildDate)
}

// ServerName returns the product token the server reports in its logs.
func ServerName() string {
	if IsDev() {
		return "shorty/dev"
	}
	return fmt.Sprintf("shorty/%s", BuildVersion)
}
