package main

import (
	"log/slog"
	"net/http"
	"os"
	"strings"

	_ "net/http/pprof" // profiling

	"stackscope/internal/stackscope/cmd"
	"stackscope/internal/stackscope/log"
)

const defaultProfileAddr = "localhost:6060"

// profileAddr returns where to serve pprof for a STACKSCOPE_PROFILE value:
// the value itself when it names an address, the default otherwise, and ""
// when profiling is off.
func profileAddr(v string) string {
	switch {
	case v == "" || v == "0" || v == "false":
		return ""
	case strings.Contains(v, ":"):
		return v
	}
	return defaultProfileAddr
}

func main() {
	defer log.RecoverPanic("main", func() {
		slog.Error("Analysis aborted by an unhandled panic")
	})

	if addr := profileAddr(os.Getenv("STACKSCOPE_PROFILE")); addr != "" {
		go func() {
			slog.Info("Serving pprof", "addr", addr)
			if err := http.ListenAndServe(addr, nil); err != nil {
				slog.Error("Failed to serve pprof", "addr", addr, "error", err)
			}
		}()
	}

	cmd.Execute()
}
