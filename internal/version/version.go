package version

// Set at link time:
// go build -ldflags "-X git.home.luguber.info/inful/sitebuilder/internal/version.Version=v0.3.0".
var (
	Version   = "unknown"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Generator identifies this binary in generated artifacts (site document buildInfo, reports).
func Generator() string {
	return "sitebuilder/" + Version
}

// String is the --version output.
func String() string {
	return Version + " (commit " + GitCommit + ", built " + BuildTime + ")"
}
