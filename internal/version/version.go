// Package version reports PrEval build information. Version, GitCommit and
// BuildDate are injected at build time with -ldflags.
package version

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"preval/internal/protocol"

	"github.com/Masterminds/semver/v3"
)

const unknown = "unknown"

// Build information set via -ldflags "-X preval/internal/version.Version=...".
var (
	Version   = "0.1.0"
	GitCommit = unknown
	BuildDate = unknown
)

// ErrNoBuildDate is returned by BuildTime when no build date was injected.
var ErrNoBuildDate = errors.New("build date not available")

// Info is the build information of the running binary.
type Info struct {
	Version       string          `json:"version" yaml:"version"`
	GitCommit     string          `json:"gitCommit" yaml:"git_commit"`
	BuildDate     string          `json:"buildDate" yaml:"build_date"`
	GoVersion     string          `json:"goVersion" yaml:"go_version"`
	Platform      string          `json:"platform" yaml:"platform"`
	ProtocolRange string          `json:"protocolRange" yaml:"protocol_range"`
	SemVer        *semver.Version `json:"-" yaml:"-"`
}

// GetInfo parses Version and collects the build information.
func GetInfo() (*Info, error) {
	sv, err := semver.NewVersion(Version)
	if err != nil {
		return nil, fmt.Errorf("invalid semantic version '%s': %w", Version, err)
	}
	return &Info{
		Version:       sv.String(),
		GitCommit:     GitCommit,
		BuildDate:     BuildDate,
		GoVersion:     runtime.Version(),
		Platform:      runtime.GOOS + "/" + runtime.GOARCH,
		ProtocolRange: protocol.SupportedProtocolRange,
		SemVer:        sv,
	}, nil
}

// ShortCommit returns the first seven characters of GitCommit.
func ShortCommit() string {
	if len(GitCommit) > 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

// GetFormattedVersion returns a one-line version string such as
// "PrEval v0.1.0, commit abc1234, built 2025-01-01".
func GetFormattedVersion() string {
	info, err := GetInfo()
	if err != nil {
		return fmt.Sprintf("PrEval v%s (invalid version)", Version)
	}

	parts := []string{"PrEval v" + info.Version}
	if known(info.GitCommit) {
		parts = append(parts, "commit "+ShortCommit())
	}
	if known(info.BuildDate) {
		parts = append(parts, "built "+info.BuildDate)
	}
	return strings.Join(parts, ", ")
}

// GetDetailedVersion returns multi-line build information.
func GetDetailedVersion() string {
	info, err := GetInfo()
	if err != nil {
		return fmt.Sprintf("PrEval v%s (error: %v)", Version, err)
	}

	lines := []string{
		"PrEval v" + info.Version + releaseTag(),
		"Git Commit: " + info.GitCommit,
		"Build Date: " + buildDateLine(),
	}
	if meta := info.SemVer.Metadata(); meta != "" {
		lines = append(lines, "Build Metadata: "+meta)
	}
	lines = append(lines,
		"Protocol: "+info.ProtocolRange,
		"Go Version: "+info.GoVersion,
		"Platform: "+info.Platform,
	)
	return strings.Join(lines, "\n")
}

func releaseTag() string {
	switch {
	case IsDevelopment():
		return " (development build)"
	case IsPrerelease():
		return " (prerelease)"
	default:
		return ""
	}
}

// buildDateLine normalizes a parseable BuildDate to UTC RFC 3339.
func buildDateLine() string {
	t, err := BuildTime()
	if err != nil {
		return BuildDate
	}
	return t.UTC().Format(time.RFC3339)
}

// IsPrerelease reports whether Version carries a prerelease tag.
func IsPrerelease() bool {
	sv, err := semver.NewVersion(Version)
	return err == nil && sv.Prerelease() != ""
}

// IsDevelopment reports whether the binary was built without -ldflags.
func IsDevelopment() bool {
	return !known(GitCommit) || !known(BuildDate)
}

// SetBuildInfo overrides the injected build information.
func SetBuildInfo(version, gitCommit, buildDate string) {
	Version = version
	GitCommit = gitCommit
	BuildDate = buildDate
}

// BuildTime parses BuildDate.
func BuildTime() (time.Time, error) {
	if !known(BuildDate) {
		return time.Time{}, ErrNoBuildDate
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, BuildDate); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse build date '%s'", BuildDate)
}

func known(v string) bool {
	return v != "" && v != unknown
}
