package version

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built softwares version.
	Version = CDCoreSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

const (
	// CDCoreSemVer is the current version of compactd.
	// It's the Semantic Version of the software.
	CDCoreSemVer = "0.3.0"

	// AppProtocol is the application protocol version reported to the
	// consensus engine through Info. Bump it whenever the state transition
	// function changes.
	AppProtocol uint64 = 1
)
