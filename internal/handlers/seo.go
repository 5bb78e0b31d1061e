package handlers

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"inkpress/internal/models"
	"inkpress/internal/services"
)

const feedSize = 20

type SEOHandler struct {
	feed      *services.FeedService
	siteURL   string
	clientURL string
	siteName  string
	now       func() time.Time
}

func NewSEOHandler(feed *services.FeedService, siteURL, clientURL, siteName string) *SEOHandler {
	return &SEOHandler{
		feed:      feed,
		siteURL:   siteURL,
		clientURL: clientURL,
		siteName:  siteName,
		now:       time.Now,
	}
}

func (h *SEOHandler) postURL(p *models.Post) string {
	return fmt.Sprintf("%s/posts/%s", h.clientURL, p.ID)
}

// RobotsTxt GET /robots.txt
func (h *SEOHandler) RobotsTxt(c *gin.Context) {
	content := fmt.Sprintf(`User-agent: *
Allow: /
Disallow: /api/
Disallow: /auth/

Sitemap: %s/sitemap.xml
`, h.siteURL)
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(http.StatusOK, content)
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// SitemapXML GET /sitemap.xml
func (h *SEOHandler) SitemapXML(c *gin.Context) {
	posts, err := h.feed.SitemapPosts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	now := h.now()
	set := urlSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	set.URLs = append(set.URLs, sitemapURL{
		Loc:        h.clientURL + "/",
		LastMod:    now.Format("2006-01-02"),
		ChangeFreq: "daily",
		Priority:   "1.0",
	})
	for i := range posts {
		p := &posts[i]
		// fresher posts are crawled more often
		age := now.Sub(publishedOrCreated(p)).Hours() / 24
		priority, freq := "0.6", "weekly"
		if age < 7 {
			priority, freq = "0.8", "daily"
		} else if age < 30 {
			priority = "0.7"
		}
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        h.postURL(p),
			LastMod:    p.UpdatedAt.Format("2006-01-02"),
			ChangeFreq: freq,
			Priority:   priority,
		})
	}
	h.writeXML(c, "application/xml; charset=utf-8", set)
}

type rss struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link"`
	Description cdata    `xml:"description"`
	Author      string   `xml:"author,omitempty"`
	Categories  []string `xml:"category"`
	PubDate     string   `xml:"pubDate"`
	GUID        rssGUID  `xml:"guid"`
}

type cdata struct {
	Text string `xml:",cdata"`
}

type rssGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// RSSFeed GET /feed.xml
// RSS 2.0 feed of the newest published posts.
func (h *SEOHandler) RSSFeed(c *gin.Context) {
	posts, err := h.feed.PublishedFeed(c.Request.Context(), feedSize)
	if err != nil {
		writeError(c, err)
		return
	}
	feed := rss{
		Version: "2.0",
		Channel: rssChannel{
			Title:         h.siteName,
			Link:          h.clientURL,
			Description:   "Latest posts from " + h.siteName,
			LastBuildDate: h.now().Format(time.RFC1123Z),
		},
	}
	for i := range posts {
		p := &posts[i]
		link := h.postURL(p)
		desc := p.Excerpt + fmt.Sprintf(`<p><a href="%s">Read more</a></p>`, link)
		feed.Channel.Items = append(feed.Channel.Items, rssItem{
			Title:       p.Title,
			Link:        link,
			Description: cdata{Text: desc},
			Author:      p.AuthorName,
			Categories:  p.Tags,
			PubDate:     publishedOrCreated(p).Format(time.RFC1123Z),
			GUID:        rssGUID{IsPermaLink: true, Value: link},
		})
	}
	h.writeXML(c, "application/rss+xml; charset=utf-8", feed)
}

func (h *SEOHandler) writeXML(c *gin.Context, contentType string, v any) {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, contentType, append([]byte(xml.Header), out...))
}

func publishedOrCreated(p *models.Post) time.Time {
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}
