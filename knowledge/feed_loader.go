package knowledge

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/pensionlab/guidancecore/errors"
)

// ItemsFromFeed reads a regulator news feed (e.g. FCA updates) and turns
// each entry into an indexable item.
func ItemsFromFeed(ctx context.Context, feedURL string) ([]*Item, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	feed, err := gofeed.NewParser().ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse feed: %s", feedURL)
	}

	items := make([]*Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		content := entry.Title
		if entry.Description != "" {
			content += "\n" + entry.Description
		}
		if content == "" {
			continue
		}

		link := entry.Link
		item := &Item{
			Content: content,
			Source: Source{
				Title: entry.Title,
				URL:   &link,
				Type:  SourceTypeFeed,
			},
			Metadata: map[string]any{
				"feed":       feedURL,
				"categories": entry.Categories,
			},
		}
		if entry.PublishedParsed != nil {
			item.CreatedAt = *entry.PublishedParsed
		}
		items = append(items, item)
	}

	return items, nil
}
