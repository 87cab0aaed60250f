// Package github fetches repository activity from the GitHub REST and
// GraphQL APIs.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v72/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/joescharf/ghwatch/internal/fetch"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 5
	maxPageSize     = 100
)

// Config holds settings for a Client.
type Config struct {
	// Token is a personal access token. Empty means unauthenticated.
	Token string

	// Timeout bounds every request. Defaults to 30s.
	Timeout time.Duration

	// PageSize is the number of newest entries requested per list call.
	// Clamped to [1, 100].
	PageSize int

	// RESTBaseURL and GraphQLURL override the public endpoints, for
	// GitHub Enterprise or tests.
	RESTBaseURL string
	GraphQLURL  string

	// HTTPClient is the base client wrapped with token auth. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client bundles authenticated REST and GraphQL clients shared by the
// fetchers in this package.
type Client struct {
	rest     *gh.Client
	graphql  *githubv4.Client
	pageSize int
	logger   *slog.Logger
}

// NewClient builds a Client from cfg.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.Token != "" {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	} else {
		cp := *httpClient
		httpClient = &cp
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient.Timeout = timeout

	rest := gh.NewClient(httpClient)
	if cfg.RESTBaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.RESTBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse REST base URL: %w", err)
		}
		rest.BaseURL = u
	}

	var gql *githubv4.Client
	if cfg.GraphQLURL != "" {
		gql = githubv4.NewEnterpriseClient(cfg.GraphQLURL, httpClient)
	} else {
		gql = githubv4.NewClient(httpClient)
	}

	return &Client{
		rest:     rest,
		graphql:  gql,
		pageSize: clampPageSize(cfg.PageSize),
		logger:   logger,
	}, nil
}

func clampPageSize(n int) int {
	switch {
	case n <= 0:
		return defaultPageSize
	case n > maxPageSize:
		return maxPageSize
	default:
		return n
	}
}

// Fetchers returns every fetcher backed by c.
func (c *Client) Fetchers() []fetch.Fetcher {
	return []fetch.Fetcher{
		NewDiscussionFetcher(c),
		NewIssueFetcher(c),
		NewCommentFetcher(c),
	}
}

func login(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
