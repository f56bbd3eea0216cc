package lawdata

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/araddon/dateparse"
	"github.com/charmbracelet/log"
	"golang.org/x/net/html/charset"

	"beopsuny/internal/domain"
	"beopsuny/internal/proxy"
)

type rssDocument struct {
	Channel struct {
		Title string    `xml:"title"`
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// FetchPress downloads and parses a ministry press-release RSS feed. A
// non-positive limit keeps every item.
func FetchPress(ctx context.Context, f Fetcher, rssURL string, limit int) ([]domain.PressItem, error) {
	body, err := f.Fetch(ctx, rssURL, proxy.FetchOptions{
		Headers: map[string]string{"Accept": "application/rss+xml, application/xml, text/xml"},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch press feed: %w", err)
	}

	return ParsePress(body, limit)
}

// ParsePress decodes RSS text into press items. Ministry feeds are not
// always UTF-8, so the decoder honors the document's declared charset.
func ParsePress(body string, limit int) ([]domain.PressItem, error) {
	var doc rssDocument
	decoder := xml.NewDecoder(strings.NewReader(body))
	decoder.CharsetReader = charset.NewReaderLabel
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse press feed: %w", err)
	}

	items := make([]domain.PressItem, 0, len(doc.Channel.Items))
	for _, raw := range doc.Channel.Items {
		item := domain.PressItem{
			Title:       strings.TrimSpace(raw.Title),
			Link:        strings.TrimSpace(raw.Link),
			Description: strings.TrimSpace(raw.Description),
			GUID:        strings.TrimSpace(raw.GUID),
		}

		if pubDate := strings.TrimSpace(raw.PubDate); pubDate != "" {
			// pubDate formats vary per ministry; dateparse covers the spread.
			published, err := dateparse.ParseAny(pubDate)
			if err != nil {
				log.Debug("Unparseable pubDate", "value", pubDate, "title", item.Title)
			} else {
				item.Published = published
			}
		}

		items = append(items, item)
		if limit > 0 && len(items) >= limit {
			break
		}
	}

	return items, nil
}
