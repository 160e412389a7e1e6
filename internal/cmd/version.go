package cmd

// version is set at build time via -ldflags.
var version = "dev"

// Version returns the daemon's build version.
func Version() string {
	return version
}
