package knowledge

import (
	"fmt"
	"time"

	firecrawl "github.com/mendableai/firecrawl-go"
	"github.com/pensionlab/guidancecore/config"
	"github.com/pensionlab/guidancecore/errors"
)

// ItemsFromURL crawls a guidance page (and linked pages up to the
// configured depth) and converts each crawled page into one item.
func ItemsFromURL(conf *config.KnowledgeConfig, inputURL string) ([]*Item, error) {
	if conf.FirecrawlAPIKey == "" {
		return nil, errors.New("FIRECRAWL_API_KEY is not set")
	}

	client, err := firecrawl.NewFirecrawlApp(conf.FirecrawlAPIKey, conf.FirecrawlAPIURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create firecrawl client")
	}

	maxDepth := conf.CrawlMaxDepth
	limit := conf.CrawlLimit
	crawlResult, err := client.CrawlURL(inputURL, &firecrawl.CrawlParams{
		MaxDepth: &maxDepth,
		Limit:    &limit,
	}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to crawl URL: %s", inputURL)
	}
	if crawlResult.Status == "failed" {
		return nil, errors.Errorf("crawl failed for URL: %s", inputURL)
	}

	items := make([]*Item, 0, len(crawlResult.Data))
	for _, page := range crawlResult.Data {
		content := page.Markdown
		if content == "" {
			content = page.HTML
		}
		if content == "" {
			continue
		}

		pageURL := inputURL
		pageTitle := fmt.Sprintf("Website: %s", inputURL)
		if page.Metadata != nil {
			if page.Metadata.SourceURL != nil && *page.Metadata.SourceURL != "" {
				pageURL = *page.Metadata.SourceURL
			}
			if page.Metadata.Title != nil && *page.Metadata.Title != "" {
				pageTitle = *page.Metadata.Title
			}
		}

		url := pageURL
		items = append(items, &Item{
			Content: content,
			Source: Source{
				Title: pageTitle,
				URL:   &url,
				Type:  SourceTypeURL,
			},
			Metadata: map[string]any{
				"crawled_at": time.Now().Format(time.RFC3339),
			},
		})
	}

	if len(items) == 0 {
		return nil, errors.Errorf("no content retrieved from URL: %s", inputURL)
	}
	return items, nil
}
