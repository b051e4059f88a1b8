// Package main is a minimal liveness probe binary for use in distroless
// containers. It exits 0 when the gateway's /health endpoint returns HTTP
// 200, and 1 otherwise. The gateway port is taken from EDGEGATE_PORT so the
// probe follows the same override the server honors. Compile with
// CGO_ENABLED=0 for a fully static binary.
package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

const defaultPort = 8080

func main() {
	port := defaultPort
	if raw := os.Getenv("EDGEGATE_PORT"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil {
			port = p
		}
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/health", port))
	if err != nil {
		os.Exit(1)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
