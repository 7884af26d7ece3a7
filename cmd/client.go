// Package cmd holds the HTTP client subcommands that talk to a running
// candy-tools API server.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/Passion-Never-Dissipate/candy-tools/internal/version"
)

// errNoMatch makes the process exit non-zero when a wait ends without a match.
var errNoMatch = errors.New("no match")

// clientFlags are shared by every client subcommand.
type clientFlags struct {
	addr     string
	user     string
	password string
	timeout  time.Duration
	match    bool
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.addr, "addr", "http://localhost:8090", "API server base URL")
	cmd.Flags().StringVar(&f.user, "user", "", "Basic auth username")
	cmd.Flags().StringVar(&f.password, "password", "", "Basic auth password")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "How long the server waits (0 = server default)")
}

// problem is the RFC 9457 body huma returns for errors.
type problem struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func (p *problem) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%d %s: %s", p.Status, p.Title, p.Detail)
	}
	return fmt.Sprintf("%d %s", p.Status, p.Title)
}

// client wraps resty with the API base URL and credentials.
type client struct {
	http *resty.Client
}

// newClient builds a client whose HTTP timeout outlasts the server-side wait.
func newClient(f *clientFlags) *client {
	wait := f.timeout
	if wait <= 0 {
		wait = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(f.addr).
		SetTimeout(wait+10*time.Second).
		SetHeader("User-Agent", version.UserAgent()).
		SetHeader("Accept", "application/json").
		SetError(&problem{})
	if f.user != "" {
		c.SetBasicAuth(f.user, f.password)
	}
	return &client{http: c}
}

// post sends body as JSON and decodes the response into result.
func (c *client) post(path string, body, result any) error {
	resp, err := c.http.R().SetBody(body).SetResult(result).Post(path)
	return checkResponse(resp, err)
}

// get decodes the response into result.
func (c *client) get(path string, query map[string]string, result any) error {
	resp, err := c.http.R().SetQueryParams(query).SetResult(result).Get(path)
	return checkResponse(resp, err)
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		if p, ok := resp.Error().(*problem); ok && p.Status != 0 {
			return p
		}
		return fmt.Errorf("unexpected status %s", resp.Status())
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
