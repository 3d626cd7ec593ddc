package prompt

import (
	"fmt"
	"strings"

	"mmrag/internal/domain"
)

const template = `
Answer the question based only on the following context,
which can include text, tables, and image(s).

Context: %s
Question: %s
`

// Build assembles the single-turn multi-modal prompt: the instruction text
// with all texts concatenated, followed by one data URI block per image.
func Build(c domain.Classified, question string) domain.Prompt {
	var sb strings.Builder
	for _, t := range c.Texts {
		sb.WriteString(t)
	}
	p := domain.Prompt{Text: fmt.Sprintf(template, sb.String(), question)}
	for _, img := range c.Images {
		p.Images = append(p.Images, domain.ImageBlock{URL: DataURI(img)})
	}
	return p
}

// DataURI wraps a base64 image as data:<mime>;base64,<payload>.
func DataURI(img domain.Image) string {
	mime := img.MIME
	if mime == "" {
		mime = domain.DefaultImageMIME
	}
	return "data:" + mime + ";base64," + img.Base64
}
