package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"code.dny.dev/ssrf"
	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"

	"inkpress/internal/auth"
	"inkpress/internal/errs"
)

const maxImportBody = 5 << 20

// Importer turns a web article into a draft post. The readable part of the
// page is extracted and then goes through the same sanitizer as any post.
type Importer struct {
	posts  *PostService
	client *http.Client
	log    zerolog.Logger
}

// importGuard refuses connections to loopback, private, link-local and
// other non-public addresses. It runs after DNS resolution and again for
// every redirect hop.
var importGuard = ssrf.New(ssrf.WithAnyPort())

// NewImporter uses client for fetching when it is not nil. The default
// client only dials public addresses and ignores proxy settings.
func NewImporter(posts *PostService, client *http.Client, log zerolog.Logger) *Importer {
	if client == nil {
		client = newPublicClient()
	}
	return &Importer{
		posts:  posts,
		client: client,
		log:    log.With().Str("service", "importer").Logger(),
	}
}

// ImportFromURL fetches rawURL and stores its article as a draft written by
// p. The source link is appended to the content.
func (im *Importer) ImportFromURL(ctx context.Context, p *auth.Principal, rawURL string) (string, error) {
	actor, err := loadActor(ctx, im.posts.store, p)
	if err != nil {
		return "", err
	}
	if !actor.Role.CanAuthor() {
		return "", errs.Unauthorized("author or admin role required")
	}

	src, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (src.Scheme != "http" && src.Scheme != "https") || src.Host == "" {
		return "", errs.Validation("url must be an absolute http(s) URL")
	}

	body, err := im.fetch(ctx, src)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(bytes.NewReader(body), src)
	if err != nil {
		return "", errs.Validation("no readable article found at %s", src.Host)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = src.Host
	}
	if utf8.RuneCountInString(title) > maxTitleLen {
		title = string([]rune(title)[:maxTitleLen])
	}
	link := html.EscapeString(src.String())
	content := article.Content + fmt.Sprintf(`<p>Source: <a href="%s">%s</a></p>`, link, link)

	id, err := im.posts.CreatePost(ctx, p, PostInput{
		Title:   title,
		Content: content,
		Excerpt: strings.TrimSpace(article.Excerpt),
	})
	if err != nil {
		return "", err
	}
	im.log.Info().Str("post_id", id).Str("source", src.Host).Msg("article imported")
	return id, nil
}

func newPublicClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   importGuard.Safe,
	}
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			Proxy:               nil,
			DialContext:         dialer.DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func blockedAddress(err error) bool {
	return errors.Is(err, ssrf.ErrProhibitedIP) ||
		errors.Is(err, ssrf.ErrProhibitedNetwork) ||
		errors.Is(err, ssrf.ErrProhibitedPort)
}

func (im *Importer) fetch(ctx context.Context, src *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.String(), nil)
	if err != nil {
		return nil, errs.Validation("invalid url")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; inkpress-importer/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := im.client.Do(req)
	if err != nil {
		if blockedAddress(err) {
			return nil, errs.Validation("url must point to a public address")
		}
		return nil, errs.Upstream("fetch article", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Upstream("fetch article", fmt.Errorf("status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImportBody))
	if err != nil {
		return nil, errs.Upstream("read article", err)
	}
	return body, nil
}
