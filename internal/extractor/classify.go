package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/custodia-labs/stash/internal/core/domain"
)

var (
	tweetHosts = []string{
		"twitter.com", "x.com", "threads.net", "bsky.app", "mastodon.social",
	}
	videoHosts = []string{
		"youtube.com", "youtu.be", "vimeo.com", "twitch.tv", "tiktok.com", "dailymotion.com",
	}
	articleHosts = []string{
		"medium.com", "substack.com", "dev.to", "hashnode.dev", "wordpress.com",
		"blogspot.com", "ghost.io", "nytimes.com", "theguardian.com", "bbc.co.uk",
	}

	articlePath = regexp.MustCompile(`(?i)/(blog|blogs|article|articles|post|posts|news|p|story|stories)/|/\d{4}/\d{2}/`)
)

// Classify returns the content type of the page at rawURL.
func Classify(rawURL string) domain.ContentType {
	u, err := url.Parse(rawURL)
	if err != nil {
		return domain.ContentTypeWebpage
	}
	host := strings.ToLower(u.Hostname())

	switch {
	case matchesHost(host, tweetHosts):
		return domain.ContentTypeTweet
	case matchesHost(host, videoHosts):
		return domain.ContentTypeVideo
	case matchesHost(host, articleHosts), strings.HasPrefix(host, "blog."),
		articlePath.MatchString(u.Path + "/"):
		return domain.ContentTypeArticle
	default:
		return domain.ContentTypeWebpage
	}
}

// matchesHost reports whether host is one of domains or a subdomain of one.
func matchesHost(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
