// speakctl is a small client for the murfstream HTTP API. It submits text for
// synthesis and can interrupt the active turn or adjust voice settings.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var (
		server    = flag.String("server", envOr("MURFSTREAM_SERVER", "http://localhost:8080"), "murfstream server base URL")
		token     = flag.String("token", os.Getenv("BEARER_TOKEN"), "bearer token for authentication")
		voice     = flag.String("voice", "", "voice ID override for this request")
		ttl       = flag.Duration("ttl", 0, "discard the request if not spoken within this duration")
		interrupt = flag.Bool("interrupt", false, "stop the active turn and flush the queue")
		health    = flag.Bool("health", false, "check server health and exit")
	)
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	switch {
	case *health:
		run(client, *server, *token, http.MethodGet, "/v1/healthz", nil)
	case *interrupt:
		run(client, *server, *token, http.MethodPost, "/v1/interrupt", map[string]any{})
	default:
		text := ""
		if flag.NArg() > 0 {
			text = flag.Arg(0)
		} else {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fatal("read stdin: %v", err)
			}
			text = string(data)
		}
		if text == "" {
			fatal("no text to speak; pass it as an argument or on stdin")
		}

		body := map[string]any{"text": text}
		if *voice != "" {
			body["voice"] = *voice
		}
		if *ttl > 0 {
			body["ttl_ms"] = int(ttl.Milliseconds())
		}
		run(client, *server, *token, http.MethodPost, "/v1/speak", body)
	}
}

func run(client *http.Client, server, token, method, path string, body map[string]any) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			fatal("encode request: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, server+path, reader)
	if err != nil {
		fatal("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		fatal("request failed: %v", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s %s\n", resp.Status, bytes.TrimSpace(data))
	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
