package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var postPolicy = newPostPolicy()

var (
	youTubeEmbedSrc = regexp.MustCompile(`^https://www\.youtube\.com/embed/[A-Za-z0-9_-]+$`)
	iframeAllow     = regexp.MustCompile(`^[a-z-]+(; ?[a-z-]+)*;?$`)
)

// newPostPolicy accepts the players enhanceHTMLContent emits, so content
// that is saved again keeps its embeds. Any other iframe loses its src and
// is dropped.
func newPostPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowImages()
	p.AllowAttrs("class").OnElements("pre", "code", "span", "p", "div")
	p.AllowAttrs("src").Matching(youTubeEmbedSrc).OnElements("iframe")
	p.AllowAttrs("frameborder").Matching(bluemonday.Integer).OnElements("iframe")
	p.AllowAttrs("allow").Matching(iframeAllow).OnElements("iframe")
	p.AllowAttrs("allowfullscreen").OnElements("iframe")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	return p
}

// SanitizeHTML cleans rich-text post content and enhances it for display:
// images load lazily without a referrer and bare YouTube links become
// embedded players.
func SanitizeHTML(htmlStr string) string {
	sanitized := postPolicy.Sanitize(htmlStr)
	if strings.TrimSpace(sanitized) == "" {
		return ""
	}
	return enhanceHTMLContent(sanitized)
}

func enhanceHTMLContent(htmlStr string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		s.SetAttr("referrerpolicy", "no-referrer")
		s.SetAttr("loading", "lazy")
	})

	doc.Find("p").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(text, "http") || strings.Contains(text, " ") {
			return
		}
		if id := youTubeID(text); id != "" {
			s.ReplaceWithHtml(`<div class="video-container"><iframe src="https://www.youtube.com/embed/` + id +
				`" frameborder="0" allowfullscreen allow="accelerometer; clipboard-write; encrypted-media; picture-in-picture"></iframe></div>`)
		}
	})

	// goquery wraps fragments in html/body
	out, _ := doc.Find("body").Html()
	if out == "" {
		out, _ = doc.Html()
	}
	return out
}

func youTubeID(link string) string {
	var id string
	switch {
	case strings.Contains(link, "youtube.com/watch?v="):
		id = strings.Split(strings.SplitN(link, "v=", 2)[1], "&")[0]
	case strings.Contains(link, "youtu.be/"):
		id = strings.Split(strings.SplitN(link, "youtu.be/", 2)[1], "?")[0]
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return ""
		}
	}
	return id
}

// PlainText returns the visible text of an HTML fragment with whitespace
// collapsed.
func PlainText(htmlStr string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return strings.Join(strings.Fields(StripTags(htmlStr)), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Excerpt returns at most maxRunes runes of the plain text of htmlStr, cut
// at a word boundary when possible.
func Excerpt(htmlStr string, maxRunes int) string {
	text := PlainText(htmlStr)
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:maxRunes])
	if i := strings.LastIndex(cut, " "); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "…"
}

// NormalizeTags trims tags, drops empty ones and removes case-insensitive
// duplicates, keeping the first spelling.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.Join(strings.Fields(t), " ")
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
