package utils

import (
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// repositoryURL matches https://github.com/<owner>/<repo> with an optional trailing slash.
var repositoryURL = regexp.MustCompile(`^https://github\.com/([\w.-]+)/([\w.-]+)/?$`)

// ValidateRepositoryURL reports whether url is a public GitHub repository URL.
func ValidateRepositoryURL(url string) bool {
	return repositoryURL.MatchString(url)
}

// ParseRepository splits a validated repository URL into owner and name.
func ParseRepository(url string) (owner, repo string, ok bool) {
	m := repositoryURL.FindStringSubmatch(url)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSuffix(m[2], ".git"), true
}

// GetClientIP extracts client IP from Fiber request
func GetClientIP(c *fiber.Ctx) string {
	// Check X-Forwarded-For header first
	if xff := c.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := c.Get("X-Real-IP"); xri != "" {
		return xri
	}
	// Fall back to remote address
	return c.IP()
}
