package protocol

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SupportedProtocolRange is the semver constraint of protocol versions this
// build was written against.
const SupportedProtocolRange = ">= 1.0, < 2.0"

// ErrIncompatibleProtocol is returned when a handshake version falls outside
// SupportedProtocolRange. Callers treat it as a warning.
var ErrIncompatibleProtocol = errors.New("unsupported protocol version")

var supportedConstraint, _ = semver.NewConstraint(SupportedProtocolRange)

// CheckProtocolCompatibility reports whether version satisfies SupportedProtocolRange.
func CheckProtocolCompatibility(version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("%w: %q is not a semantic version", ErrIncompatibleProtocol, version)
	}
	if !supportedConstraint.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrIncompatibleProtocol, v, SupportedProtocolRange)
	}
	return nil
}
