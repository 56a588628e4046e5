package app

import (
	"time"

	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags on the given FlagSet. Flag defaults
// are zero values; unset flags fall through to env vars and configured
// defaults.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("transport", "t", "", "Transport type: stdio or sse")
	flags.StringP("host", "H", "", "Host for SSE transport")
	flags.IntP("port", "p", 0, "Port for SSE transport")
	flags.StringP("auth-type", "a", "", "Authentication type: none, basic, or apikey")
	flags.StringP("auth-basic-username", "u", "", "Basic auth username")
	flags.StringP("auth-basic-password", "P", "", "Basic auth password")
	flags.StringSliceP("auth-api-keys", "k", nil, "API keys (comma-separated)")
	flags.BoolP("metrics", "m", false, "Serve Prometheus metrics on /metrics (SSE only)")

	RegisterIndexFlags(flags)
}

// RegisterIndexFlags registers the flags shared by the server and the CLI
// sub-commands.
func RegisterIndexFlags(flags *pflag.FlagSet) {
	flags.StringP("log-level", "l", "", "Log level: debug, info, warn, or error")
	flags.String("state-dir", "", "Directory for run state (default ~/.search-every)")
	flags.StringP("index-dir", "i", "", "Index directory (default <state-dir>/index)")
	flags.StringSliceP("scan-roots", "r", nil, "Directories to scan (comma-separated)")
	flags.StringSliceP("exclude-patterns", "x", nil, "Path substrings to exclude (comma-separated)")
	flags.Bool("content-parse", false, "Index the text content of plain text files")
	flags.Uint64("max-file-size-mb", 0, "Skip files larger than this many megabytes, 0 for no cap")
	flags.Bool("follow-symlinks", false, "Follow symbolic links to directories while scanning")
	flags.Bool("auto-scan", false, "Run the daily background scan when the host is idle")
	flags.Duration("auto-scan-interval", time.Duration(0), "How often the auto scan checks whether a run is due")
	flags.Float64("auto-scan-idle-cpu", 0, "CPU percentage below which a due auto scan may start")
}
