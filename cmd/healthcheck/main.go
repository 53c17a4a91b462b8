// Command healthcheck exits non-zero unless the service answers /healthz with 200.
// It is meant for container HEALTHCHECK directives.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// targetURL builds the probe URL from HTTP_ADDR (":8080" style) when no flag is given.
func targetURL(flagURL, addr string) string {
	if flagURL != "" {
		return flagURL
	}
	if addr == "" {
		addr = ":8080"
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/healthz"
}

func main() {
	url := flag.String("url", "", "health endpoint (default derived from HTTP_ADDR)")
	timeout := flag.Duration("timeout", 3*time.Second, "request timeout")
	flag.Parse()

	client := &http.Client{Timeout: *timeout}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, targetURL(*url, os.Getenv("HTTP_ADDR")), nil)
	if err != nil {
		os.Exit(1)
	}
	resp, err := client.Do(req)
	if err != nil {
		os.Exit(1)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
