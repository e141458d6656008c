package buildinfo

// These variables are intended to be set via -ldflags at build time:
//
//	-X 'github.com/m3rciful/smpbot/core/buildinfo.Version=v0.3.0'
//	-X 'github.com/m3rciful/smpbot/core/buildinfo.Commit=abcdef0'
//	-X 'github.com/m3rciful/smpbot/core/buildinfo.Date=2025-09-29T09:00:00Z'
var (
	// Version reports the release tag of the build.
	Version = "dev"
	// Commit reports the source control commit used for the build.
	Commit = "local"
	// Date reports the build timestamp in RFC3339 format.
	Date = ""
)

// String renders version and commit for status replies.
func String() string {
	if Commit == "" || Commit == "local" {
		return Version
	}
	return Version + "+" + Commit
}
