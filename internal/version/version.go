package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "none"
)

func FullVersion() string {
	return fmt.Sprintf("%s (commit %s, %s, %s/%s)", Version, Commit,
		runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
