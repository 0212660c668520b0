// Package redis implements the summarization job queue on a Redis list
// using go-redis.
package redis

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"
)

// upstashPort is the TLS Redis port Upstash exposes next to its REST endpoint.
const upstashPort = "6379"

// Connect parses url, applies token as the password when set, and verifies
// the connection with PING.
//
// Besides redis:// and rediss:// URLs, an https:// REST endpoint is accepted
// and rewritten to the equivalent TLS Redis address.
func Connect(ctx context.Context, rawURL, token string) (*redis.Client, error) {
	redisURL, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if token != "" {
		opts.Password = token
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

func normalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	switch u.Scheme {
	case "redis", "rediss":
		return rawURL, nil
	case "https":
		host := u.Hostname()
		if host == "" {
			return "", fmt.Errorf("redis URL %q has no host", MaskURL(rawURL))
		}
		return "rediss://default@" + host + ":" + upstashPort, nil
	case "":
		// Bare host:port.
		return "redis://" + strings.TrimPrefix(rawURL, "//"), nil
	default:
		return "", fmt.Errorf("unsupported Redis URL scheme %q", u.Scheme)
	}
}

// MaskURL hides the password in a Redis URL for logging.
func MaskURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[invalid-url]"
	}
	if u.User == nil {
		return rawURL
	}
	password, ok := u.User.Password()
	if !ok || password == "" {
		return rawURL
	}
	return strings.Replace(rawURL, ":"+password+"@", ":***@", 1)
}
