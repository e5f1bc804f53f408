package version

// Version is the current version of the upscholar-live binary.
// Overridden at build time:
//
//	go build -ldflags="-X 'github.com/Asmer72582/upscholar-live/internal/version.Version=v1.0.0'"
var Version = "dev"
