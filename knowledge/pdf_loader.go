package knowledge

import (
	"io"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/pensionlab/guidancecore/errors"
)

// ItemsFromPDF extracts the text of a guidance document page by page and
// splits it into chunks of roughly chunkSize characters, breaking on
// paragraph boundaries where possible.
func ItemsFromPDF(input io.Reader, filename string, chunkSize int) ([]*Item, error) {
	pdfData, err := io.ReadAll(input)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read PDF data")
	}

	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open PDF")
	}
	defer doc.Close()

	pdfMetadata := doc.Metadata()
	title := pdfMetadata["title"]
	if title == "" {
		title = filename
	}
	source := Source{
		Title:    title,
		Filename: &filename,
		Type:     SourceTypePDF,
	}

	var sb strings.Builder
	pageCount := doc.NumPage()
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		text, err := doc.Text(pageNum)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to extract text from page %d", pageNum+1)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	chunks := splitChunks(sb.String(), chunkSize)
	items := make([]*Item, 0, len(chunks))
	for i, chunk := range chunks {
		items = append(items, &Item{
			Content: chunk,
			Source:  source,
			Metadata: map[string]any{
				"chunk":  i,
				"author": pdfMetadata["author"],
			},
		})
	}
	return items, nil
}

func splitChunks(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = 2000
	}

	var chunks []string
	var current strings.Builder
	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(paragraph) > chunkSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(paragraph)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
