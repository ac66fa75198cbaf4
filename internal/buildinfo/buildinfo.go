// Package buildinfo generates the process-lifetime ISTag every response
// carries: a process-level opaque cache-validation token, stable for the
// lifetime of the process. Version and commit are populated by -ldflags
// at build time the way intra-sh-icap leaves a PACKAGE_VERSION-style
// constant for the linker to override; they default to "dev"/"unknown"
// when built without them.
package buildinfo

import (
	"fmt"
	"os"
)

// Version and Commit are overridden at build time via:
//
//	go build -ldflags "-X github.com/bitz-icapd/icapd/internal/buildinfo.Version=1.2.3 -X .../buildinfo.Commit=abc123"
var (
	Version = "dev"
	Commit  = "unknown"
)

// istag is computed once and reused for every response this process
// writes, giving clients a stable cache-validation token for the process's
// lifetime.
var istag = fmt.Sprintf(`"bitz-icapd-%s-%s-%d"`, Version, Commit, os.Getpid())

// ISTag returns the process-level ISTag value, quoted as RFC 3507 requires.
func ISTag() string { return istag }

// ServerToken returns the value this process announces in the ICAP Server
// header.
func ServerToken() string { return "bitz-icapd/" + Version }

// String renders version information for the CLI's "version" subcommand.
func String() string {
	return fmt.Sprintf("bitz-icapd %s (commit %s)", Version, Commit)
}
