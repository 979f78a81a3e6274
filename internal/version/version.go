package version

var (
	// Version is the current application version
	Version = "3.0-motion"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)
