package config

type KnowledgeConfig struct {
	// FirecrawlAPIKey and FirecrawlAPIURL configure the URL loader.
	FirecrawlAPIKey string `env:"FIRECRAWL_API_KEY"`
	FirecrawlAPIURL string `env:"FIRECRAWL_API_URL"`

	// CrawlMaxDepth and CrawlLimit bound URL ingestion.
	CrawlMaxDepth int
	CrawlLimit    int

	// PDFChunkSize is the approximate character length of one indexed
	// chunk when splitting guidance documents.
	PDFChunkSize int
}

func NewKnowledgeConfig() *KnowledgeConfig {
	conf := &KnowledgeConfig{
		FirecrawlAPIURL: "https://api.firecrawl.dev",
		CrawlMaxDepth:   2,
		CrawlLimit:      20,
		PDFChunkSize:    2000,
	}
	resolveConfig(conf)
	return conf
}
