package meta

import (
	"fmt"
	"runtime"
	"strings"
)

// Info is what the linker stamped into the binary, plus the Go runtime it was built
// with.
type Info struct {
	Version   string `json:"version"`
	Build     string `json:"build"`
	Branch    string `json:"branch"`
	BuildTime string `json:"build_time"`
	Platform  string `json:"platform"`
	GoVersion string `json:"go_version"`
}

// Filled in with -ldflags "-X github.com/luma/piconats/internal/meta.Version=..."
var (
	// Version is also sent to servers in CONNECT
	Version string

	// Build is the git sha
	Build string

	Branch string

	// BuildTimeUTC as year/month/day hour:min:sec
	BuildTimeUTC string

	platform = fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH)
)

func GetInfo() Info {
	version := Version
	if version == "" {
		version = "dev"
	}

	return Info{
		GoVersion: runtime.Version(),
		Version:   version,
		Build:     Build,
		Branch:    Branch,
		BuildTime: BuildTimeUTC,
		Platform:  platform,
	}
}

func (i Info) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "piconats %s", i.Version)
	if i.Build != "" {
		fmt.Fprintf(&b, " (%s", i.Build)
		if i.Branch != "" {
			fmt.Fprintf(&b, " on %s", i.Branch)
		}
		b.WriteString(")")
	}

	if i.BuildTime != "" {
		fmt.Fprintf(&b, " built %s", i.BuildTime)
	}

	fmt.Fprintf(&b, " %s %s", i.GoVersion, i.Platform)
	return b.String()
}
