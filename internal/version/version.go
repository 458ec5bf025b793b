package version

var (
	// Version is the semantic version of the binary, stamped at build time.
	Version = "dev"
	// Commit is the git commit hash, stamped at build time.
	Commit = "unknown"
	// BuildDate is the build timestamp, stamped at build time.
	BuildDate = "unknown"
)
