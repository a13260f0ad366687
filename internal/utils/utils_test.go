package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	idPattern        = regexp.MustCompile(`^\d{14}-[0-9a-f]{8}$`)
	subdomainPattern = regexp.MustCompile(`^[a-z0-9-]+$`)
)

func TestGenerateDeploymentIDUnique(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := GenerateDeploymentID()
		require.Regexp(t, idPattern, id)
		_, dup := seen[id]
		require.False(t, dup, "collision on %s", id)
		seen[id] = struct{}{}
	}
}

func TestSubdomainWithSuffixDeterministic(t *testing.T) {
	a := SubdomainWithSuffix("https://github.com/acme/My_Widget.js", "a1b2c3")
	b := SubdomainWithSuffix("https://github.com/acme/My_Widget.js", "a1b2c3")
	assert.Equal(t, a, b)
	assert.Equal(t, "my-widget-js-a1b2c3", a)
}

func TestSubdomainCharset(t *testing.T) {
	urls := []string{
		"https://github.com/acme/widget",
		"https://github.com/acme/widget/",
		"https://github.com/Some.Org/REPO.name",
		"https://github.com/a/b.git",
		"https://github.com/",
		"",
		"not a url at all!",
	}
	for _, u := range urls {
		s := GenerateSubdomain(u)
		assert.Regexp(t, subdomainPattern, s, u)
	}
	assert.Equal(t, "deploy-abc", SubdomainWithSuffix("https://github.com/", "abc"))
	assert.Equal(t, "b-git-abc", SubdomainWithSuffix("https://github.com/a/b.git", "abc"))
	assert.Equal(t, "widget-git-abc", SubdomainWithSuffix("https://github.com/acme/widget.git/", "abc"))
}

func TestSameRepoDifferentOwnersDoNotCollide(t *testing.T) {
	a := GenerateSubdomain("https://github.com/alice/widget")
	b := GenerateSubdomain("https://github.com/bob/widget")
	assert.NotEqual(t, a, b)
}

func TestPtrHelpers(t *testing.T) {
	assert.Equal(t, "x", PtrValue(Ptr("x"), "y"))
	assert.Equal(t, "y", PtrValue[string](nil, "y"))
}
