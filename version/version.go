package version

import "fmt"

// Set via -ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info describes the build of this binary.
type Info struct {
	Version string
	Commit  string
	Date    string
}

// Get returns the version information of this build.
func Get() Info {
	return Info{
		Version: Version,
		Commit:  Commit,
		Date:    Date,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("scene3mf %s (commit %s, built %s)", i.Version, i.Commit, i.Date)
}
