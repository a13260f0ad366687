package utils

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const hexChars = "0123456789abcdef"

var subdomainInvalid = regexp.MustCompile(`[^a-z0-9-]`)

// GenerateDeploymentID returns "<yyyymmddHHMMSS>-<8 hex>": sortable by creation
// second, with 32 bits of crypto-random suffix.
func GenerateDeploymentID() string {
	return time.Now().UTC().Format("20060102150405") + "-" + randomHex(8)
}

// GenerateSubdomain derives a display name from the repository URL with a
// 6-hex random suffix.
func GenerateSubdomain(repoURL string) string {
	return SubdomainWithSuffix(repoURL, randomHex(6))
}

// SubdomainWithSuffix is the deterministic part of GenerateSubdomain.
func SubdomainWithSuffix(repoURL, suffix string) string {
	base := subdomainInvalid.ReplaceAllString(strings.ToLower(repoName(repoURL)), "-")
	if strings.Trim(base, "-") == "" {
		base = "deploy"
	}
	suffix = subdomainInvalid.ReplaceAllString(strings.ToLower(suffix), "-")
	if suffix == "" {
		return base
	}
	return base + "-" + suffix
}

// repoName returns the last non-empty path segment of a repository URL.
func repoName(repoURL string) string {
	p := repoURL
	if u, err := url.Parse(repoURL); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

func randomHex(n int) string {
	id, err := gonanoid.Generate(hexChars, n)
	if err != nil {
		// nanoid only fails when crypto/rand does.
		panic(err)
	}
	return id
}

// PtrValue returns the value of a pointer or a default value if nil
func PtrValue[T any](ptr *T, defaultValue T) T {
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

// Ptr returns a pointer to the given value
func Ptr[T any](v T) *T {
	return &v
}
