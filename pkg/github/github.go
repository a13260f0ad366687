package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

var (
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrRepositoryPrivate  = errors.New("repository is private")
	ErrRepositoryArchived = errors.New("repository is archived")
)

// Repository represents a GitHub repository
type Repository struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	FullName      string `json:"fullName"`
	Private       bool   `json:"private"`
	Archived      bool   `json:"archived"`
	Description   string `json:"description"`
	DefaultBranch string `json:"defaultBranch"`
	URL           string `json:"url"`
}

// Client wraps the GitHub client
type Client struct {
	client *gh.Client
}

// NewClient creates a GitHub client. An empty token gives an anonymous
// client, which is enough for public repositories.
func NewClient(ctx context.Context, token string) *Client {
	if token == "" {
		return &Client{client: gh.NewClient(nil)}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return &Client{client: gh.NewClient(tc)}
}

// Lookup fetches repository metadata.
func (c *Client) Lookup(ctx context.Context, owner, repo string) (*Repository, error) {
	r, _, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		var errResp *gh.ErrorResponse
		if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s/%s: %w", owner, repo, ErrRepositoryNotFound)
		}
		return nil, fmt.Errorf("failed to get repository %s/%s: %w", owner, repo, err)
	}

	return &Repository{
		ID:            r.GetID(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Private:       r.GetPrivate(),
		Archived:      r.GetArchived(),
		Description:   r.GetDescription(),
		DefaultBranch: r.GetDefaultBranch(),
		URL:           r.GetHTMLURL(),
	}, nil
}

// CheckDeployable returns the repository when it can be cloned anonymously and
// is still maintained.
func (c *Client) CheckDeployable(ctx context.Context, owner, repo string) (*Repository, error) {
	r, err := c.Lookup(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	if r.Private {
		return r, fmt.Errorf("%s: %w", r.FullName, ErrRepositoryPrivate)
	}
	if r.Archived {
		return r, fmt.Errorf("%s: %w", r.FullName, ErrRepositoryArchived)
	}
	return r, nil
}

// IsRejection reports whether err means the repository itself cannot be deployed,
// as opposed to GitHub being unreachable or rate limited.
func IsRejection(err error) bool {
	return errors.Is(err, ErrRepositoryNotFound) ||
		errors.Is(err, ErrRepositoryPrivate) ||
		errors.Is(err, ErrRepositoryArchived)
}
