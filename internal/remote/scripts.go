package remote

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Script is one piece of JavaScript a client page runs, in document order
type Script struct {
	Source string // absolute URL, or the page URL for inline scripts
	Code   string
}

// LoadClient fetches the rempl client at pageURL and returns the scripts
// it runs. A JavaScript response is a single script; an HTML page yields its
// inline and external classic scripts.
func (c *Client) LoadClient(ctx context.Context, pageURL string) ([]Script, error) {
	page, err := c.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if page.ContentType != "" && isJavaScript(page.ContentType) {
		return []Script{{Source: pageURL, Code: string(page.Body)}}, nil
	}

	refs, err := ExtractScripts(page)
	if err != nil {
		return nil, err
	}

	scripts := make([]Script, 0, len(refs))
	for _, ref := range refs {
		if ref.Code != "" {
			scripts = append(scripts, ref)
			continue
		}

		external, err := c.Fetch(ctx, ref.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to load script %s: %w", ref.Source, err)
		}
		c.logger.Debug("Loaded script", zap.String("src", ref.Source), zap.Int("bytes", len(external.Body)))
		scripts = append(scripts, Script{Source: ref.Source, Code: string(external.Body)})
	}

	return scripts, nil
}

// ExtractScripts parses an HTML page and returns its scripts in document
// order. External scripts are returned with an absolute Source and empty
// Code. Non-JavaScript script types (templates, JSON data) are skipped.
func ExtractScripts(page *Page) ([]Script, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, err := base.Parse(href); err == nil {
			base = ref
		}
	}

	var scripts []Script
	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		if typ, ok := s.Attr("type"); ok && !isJavaScript(typ) {
			return
		}

		if src, ok := s.Attr("src"); ok && strings.TrimSpace(src) != "" {
			ref, err := base.Parse(strings.TrimSpace(src))
			if err != nil {
				return
			}
			scripts = append(scripts, Script{Source: ref.String()})
			return
		}

		if code := s.Text(); strings.TrimSpace(code) != "" {
			scripts = append(scripts, Script{Source: page.URL, Code: code})
		}
	})

	return scripts, nil
}

func isJavaScript(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mediaType {
	case "text/javascript", "application/javascript", "application/x-javascript", "application/ecmascript", "text/ecmascript":
		return true
	}
	return false
}
