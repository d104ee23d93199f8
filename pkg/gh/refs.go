package gh

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// "fixes #42" style references; the repo is implied by the PR itself.
	shortRefRe = regexp.MustCompile(`(?i)\b(?:close[sd]?|fix(?:e[sd])?|resolve[sd]?)[:\s]+#(\d+)`)
	// Full issue urls anywhere in the body.
	issueURLRe = regexp.MustCompile(`https?://[^\s)]+/[^\s)/]+/[^\s)/]+/issues/\d+`)
	prURLRe    = regexp.MustCompile(`^https?://([^/]+)/([^/]+)/([^/]+)/pull/(\d+)`)
	numberRe   = regexp.MustCompile(`/(?:issues|pull)/(\d+)`)
)

// ClosingIssueURLs extracts the issue urls a PR body declares to close, both
// as "fixes/closes/resolves #N" shorthand (resolved against the PR's own
// repo and host) and as full issue urls.
func ClosingIssueURLs(body, host, repo string) []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}

	for _, m := range shortRefRe.FindAllStringSubmatch(body, -1) {
		if repo == "" {
			continue
		}
		add(fmt.Sprintf("https://%s/%s/issues/%s", host, repo, m[1]))
	}
	for _, u := range issueURLRe.FindAllString(body, -1) {
		add(strings.TrimRight(u, ".,;"))
	}
	return urls
}

// ParsePRURL splits a pull-request url into owner/name and number.
func ParsePRURL(prURL string) (repo string, number int, err error) {
	m := prURLRe.FindStringSubmatch(prURL)
	if m == nil {
		return "", 0, fmt.Errorf("not a pull request url: %s", prURL)
	}
	n, err := strconv.Atoi(m[4])
	if err != nil {
		return "", 0, fmt.Errorf("not a pull request url: %s", prURL)
	}
	return m[2] + "/" + m[3], n, nil
}

// IsPRURL reports whether a url points at a pull request.
func IsPRURL(u string) bool {
	return prURLRe.MatchString(u)
}

// ItemNumber extracts the issue or PR number from a content url, or 0.
func ItemNumber(u string) int {
	m := numberRe.FindStringSubmatch(u)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func splitRepo(repo string) (owner, name string, ok bool) {
	owner, name, ok = strings.Cut(repo, "/")
	return owner, name, ok && owner != "" && name != ""
}
