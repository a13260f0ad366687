package utils

import (
	"fmt"
	"math/rand"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRepositoryURL(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://github.com/acme/widget", true},
		{"https://github.com/acme/widget/", true},
		{"https://github.com/my-org/my.repo_name", true},
		{"https://github.com/a.b/c-d", true},
		{"", false},
		{"ftp://github.com/a/b", false},
		{"http://github.com/acme/widget", false},
		{"https://gitlab.com/acme/widget", false},
		{"https://github.com.evil.io/acme/widget", false},
		{"https://github.com/acme", false},
		{"https://github.com/acme/", false},
		{"https://github.com//widget", false},
		{"https://github.com/acme/widget/tree/main", false},
		{"https://github.com/acme/widget//", false},
		{"https://github.com/ac me/widget", false},
		{" https://github.com/acme/widget", false},
		{"https://github.com/acme/widget?tab=readme", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ValidateRepositoryURL(tc.url), tc.url)
	}
}

// The validator must agree with the reference pattern on generated inputs.
func TestValidateRepositoryURLGenerated(t *testing.T) {
	reference := regexp.MustCompile(`^https://github\.com/[\w.-]+/[\w.-]+/?$`)
	rng := rand.New(rand.NewSource(42))
	segments := []string{"acme", "a.b", "x-y", "under_score", "", "sp ace", "sl/ash", "q?x", "ü"}
	schemes := []string{"https://", "http://", "ftp://", "", "HTTPS://"}
	hosts := []string{"github.com", "gitlab.com", "www.github.com", "github.co"}
	tails := []string{"", "/", "//", "/extra"}

	for i := 0; i < 2000; i++ {
		u := fmt.Sprintf("%s%s/%s/%s%s",
			schemes[rng.Intn(len(schemes))],
			hosts[rng.Intn(len(hosts))],
			segments[rng.Intn(len(segments))],
			segments[rng.Intn(len(segments))],
			tails[rng.Intn(len(tails))],
		)
		assert.Equal(t, reference.MatchString(u), ValidateRepositoryURL(u), u)
	}
}

func TestParseRepository(t *testing.T) {
	owner, repo, ok := ParseRepository("https://github.com/acme/widget.git/")
	assert.True(t, ok)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "widget", repo)

	_, _, ok = ParseRepository("ftp://github.com/a/b")
	assert.False(t, ok)
}
