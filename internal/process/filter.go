package process

import "strings"

// StderrPrefix is prepended to every forwarded stderr line for display.
const StderrPrefix = "stderr: "

// DefaultNoisePrefixes are build-tool progress lines dropped from stderr.
var DefaultNoisePrefixes = []string{"Compiling", "Finished", "Running"}

// DefaultNoiseFragments drop any stderr line containing them.
var DefaultNoiseFragments = []string{"target/debug/deps/"}

// NoiseFilter decides which stderr lines are build chatter.
type NoiseFilter struct {
	Prefixes  []string
	Fragments []string
}

// DefaultNoiseFilter returns the filter for common build tooling, extended
// with extraPrefixes.
func DefaultNoiseFilter(extraPrefixes ...string) NoiseFilter {
	prefixes := append([]string{}, DefaultNoisePrefixes...)
	for _, p := range extraPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}
	return NoiseFilter{
		Prefixes:  prefixes,
		Fragments: append([]string{}, DefaultNoiseFragments...),
	}
}

// IsNoise reports whether line should be dropped. Blank lines are noise.
func (f NoiseFilter) IsNoise(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	for _, p := range f.Prefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	for _, frag := range f.Fragments {
		if strings.Contains(trimmed, frag) {
			return true
		}
	}
	return false
}
