package github

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	httpsRepoRe = regexp.MustCompile(`^(?:https?://)?(?:www\.)?github\.com/([\w.-]+)/([\w.-]+?)(?:\.git)?(?:[/?#].*)?$`)
	sshRepoRe   = regexp.MustCompile(`^git@github\.com:([\w.-]+)/([\w.-]+?)(?:\.git)?/?$`)
	shortRepoRe = regexp.MustCompile(`^([\w.-]+)/([\w.-]+?)(?:\.git)?$`)
)

// ParseRepoURL extracts owner and repository name from a GitHub locator.
func ParseRepoURL(locator string) (owner, repo string, err error) {
	locator = strings.TrimSpace(locator)

	for _, re := range []*regexp.Regexp{httpsRepoRe, sshRepoRe, shortRepoRe} {
		if m := re.FindStringSubmatch(locator); m != nil {
			if m[1] == "." || m[1] == ".." || m[2] == "." || m[2] == ".." || strings.EqualFold(m[1], "github.com") {
				break
			}
			return m[1], m[2], nil
		}
	}
	return "", "", fmt.Errorf("%w: %q", ErrInvalidRepoURL, locator)
}

// IsRepoURL reports whether locator is a full GitHub repository URL.
// The bare owner/repo form is not accepted since it is ambiguous with
// host/path website locators.
func IsRepoURL(locator string) bool {
	locator = strings.TrimSpace(locator)
	if !httpsRepoRe.MatchString(locator) && !sshRepoRe.MatchString(locator) {
		return false
	}
	_, _, err := ParseRepoURL(locator)
	return err == nil
}
