// Package version exposes the build metadata stamped into the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Stamped at build time:
//
//	go build -ldflags "-X github.com/twinforge/aaskit/version.Version=v0.4.0 \
//	  -X github.com/twinforge/aaskit/version.CommitHash=$(git rev-parse HEAD) \
//	  -X github.com/twinforge/aaskit/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Unstamped binaries (go install, go run) fall back to the VCS metadata the
// Go toolchain embeds, when present.
var (
	CommitHash = "dev"
	BuildTime  = "unknown"
	Version    = "dev"
)

// Info bundles the stamped metadata with facts about the running binary.
type Info struct {
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the build information of this binary.
func Get() Info {
	info := Info{
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		Version:    Version,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
	if info.CommitHash == "dev" {
		fillFromBuildInfo(&info)
	}
	return info
}

// fillFromBuildInfo recovers commit and build time from the toolchain's
// embedded VCS settings for binaries built without ldflags.
func fillFromBuildInfo(info *Info) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" && info.Version == "dev" {
		info.Version = v
	}
	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.CommitHash = setting.Value
		case "vcs.time":
			if info.BuildTime == "unknown" {
				info.BuildTime = setting.Value
			}
		}
	}
}

// String renders the long form, e.g. "aaskit v0.4.0 (commit 1a2b3c4, built ...)".
func (i Info) String() string {
	return fmt.Sprintf("aaskit %s (commit %s, built %s)", i.Version, i.Short(), i.BuildTime)
}

// Short returns the abbreviated commit hash.
func (i Info) Short() string {
	if len(i.CommitHash) >= 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}
