// Package logging builds the structured logger shared by the command
// line tools and long-running servers.
package logging

import (
	"fmt"
	"io"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// New returns a logger writing one key/value line per entry to w.
// Entries with V-level above verbosity are dropped.
func New(w io.Writer, verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		ts := time.Now().Format("15:04:05.000")
		if prefix != "" {
			fmt.Fprintf(w, "%s %s: %s\n", ts, prefix, args)
			return
		}
		fmt.Fprintf(w, "%s %s\n", ts, args)
	}, funcr.Options{Verbosity: verbosity})
}
