package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// minCandidateLength is the text floor for a main-content container.
	minCandidateLength = 200
	// minFragmentLength drops captions, buttons and similar crumbs.
	minFragmentLength = 10
	// minMainTextLength triggers the whole-page fallback.
	minMainTextLength = 100
)

// noise matches regions that never hold the main text.
const noise = "script, style, noscript, svg, iframe, form, nav, header, footer, aside, " +
	"[role=navigation], [role=banner], [role=complementary], .ad, .ads, .advert, " +
	".advertisement, .sidebar, .comments, #comments, .comment, .share, .social, .newsletter, .cookie"

// contentCandidates are tried in order; the first with enough text wins.
var contentCandidates = []string{
	"article",
	"[role=main]",
	"main",
	"[itemprop=articleBody]",
	".post-content",
	".entry-content",
	".article-content",
	".article-body",
	".post-body",
	"#content",
	".content",
	"#main",
}

const textBlocks = "p, h1, h2, h3, h4, h5, h6, li, blockquote, pre"

// mainText extracts readable text from a generic or article page.
func mainText(doc *goquery.Document) string {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		body = doc.Selection
	}
	// Work on a copy so metadata lookups on doc are unaffected.
	body = body.Clone()
	body.Find(noise).Remove()

	container := body
	for _, sel := range contentCandidates {
		found := false
		body.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if len(collapse(s.Text())) > minCandidateLength {
				container = s
				found = true
				return false
			}
			return true
		})
		if found {
			break
		}
	}

	var parts []string
	container.Find(textBlocks).Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are covered by their outermost block.
		if s.ParentsFiltered(textBlocks).Length() > 0 {
			return
		}
		var text string
		if goquery.NodeName(s) == "pre" {
			text = strings.TrimSpace(s.Text())
		} else {
			text = collapse(s.Text())
		}
		if len(text) >= minFragmentLength {
			parts = append(parts, text)
		}
	})

	joined := strings.Join(parts, "\n\n")
	if len(joined) < minMainTextLength {
		return collapse(body.Text())
	}
	return joined
}

var tweetSelectors = []string{
	`[data-testid="tweetText"]`,
	`.tweet-text`,
	`blockquote.twitter-tweet p`,
	`article div[lang]`,
}

// tweetText returns the post body, falling back to the preview description.
func tweetText(doc *goquery.Document) string {
	for _, sel := range tweetSelectors {
		if t := collapse(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return metaContent(doc, `meta[property="og:description"]`, `meta[name="twitter:description"]`, `meta[name="description"]`)
}

var videoDescriptionSelectors = []string{
	"#description",
	"ytd-text-inline-expander",
	"#watch-description-text",
	".description",
}

var channelSelectors = []string{
	`[itemprop="author"] link[itemprop="name"]`,
	`link[itemprop="name"]`,
	`.ytd-channel-name a`,
	`#owner-name a`,
}

// videoText returns the title plus the longest description found, and the
// channel name when one is present.
func videoText(doc *goquery.Document, title string) (string, string) {
	desc := ""
	consider := func(s string) {
		if len(s) > len(desc) {
			desc = s
		}
	}
	for _, sel := range videoDescriptionSelectors {
		consider(strings.TrimSpace(doc.Find(sel).First().Text()))
	}
	consider(metaContent(doc, `meta[itemprop="description"]`))
	consider(metaContent(doc, `meta[property="og:description"]`))
	consider(metaContent(doc, `meta[name="description"]`))

	var channel string
	for _, sel := range channelSelectors {
		s := doc.Find(sel).First()
		if c := collapse(s.AttrOr("content", s.Text())); c != "" {
			channel = c
			break
		}
	}

	text := title
	if desc != "" {
		text = title + "\n\n" + desc
	}
	return text, channel
}
