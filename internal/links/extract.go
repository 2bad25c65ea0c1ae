// Package links finds supported video links in free-form chat text.
package links

import (
	"regexp"
	"strings"

	"github.com/iconidentify/reelbot/internal/domain"
)

// candidatePattern matches anything that looks like a link to a supported
// host. The host must start the text or follow a character that cannot be
// part of a host name, so lookalike domains are not matched by their suffix.
var candidatePattern = regexp.MustCompile(`(?i)(?:^|[^a-z0-9._-])((?:https?://)?(?:[a-z0-9-]+\.)*(?:instagram\.com|youtube\.com|youtu\.be)/\S*)`)

// host anchors a rule at the start of a candidate: optional scheme, then
// whole subdomain labels.
const host = `(?i)^(?:https?://)?(?:[a-z0-9-]+\.)*`

type rule struct {
	provider domain.Provider
	pattern  *regexp.Regexp
}

// rules are tried in order against each candidate; the first match wins.
var rules = []rule{
	{domain.ProviderInstagram, regexp.MustCompile(host + `instagram\.com/(?:[^/?\s]+/)?(?:p|reel)/([^/?\s]*)`)},
	{domain.ProviderYouTube, regexp.MustCompile(host + `youtube\.com/shorts/([^/?&\s]*)`)},
	{domain.ProviderYouTube, regexp.MustCompile(host + `youtu\.be/([^/?&\s]*)`)},
	{domain.ProviderYouTube, regexp.MustCompile(host + `youtube\.com/\S*?[?&]v=([^&\s]*)`)},
}

// Extract returns every recognized video reference in text, in order of
// appearance. Repeated links are returned once per occurrence.
func Extract(text string) []domain.VideoReference {
	var refs []domain.VideoReference

	for _, m := range candidatePattern.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimRight(m[1], ".,;:!)]}'\"")
		ref, ok := classify(candidate)
		if !ok {
			continue
		}
		refs = append(refs, ref)
	}

	return refs
}

// Parse classifies a single URL. It reports false for unsupported links and
// links whose ID segment is empty.
func Parse(rawURL string) (domain.VideoReference, bool) {
	return classify(strings.TrimSpace(rawURL))
}

func classify(candidate string) (domain.VideoReference, bool) {
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(candidate)
		if m == nil {
			continue
		}
		id := m[1]
		if id == "" {
			return domain.VideoReference{}, false
		}
		return domain.VideoReference{
			Provider:  r.provider,
			VideoID:   id,
			SourceURL: withScheme(candidate),
		}, true
	}
	return domain.VideoReference{}, false
}

func withScheme(u string) string {
	lower := strings.ToLower(u)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return u
	}
	return "https://" + u
}
