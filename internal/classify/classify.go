// Package classify splits retrieved parent documents into image and text
// payloads.
//
// Documents tagged at indexing time go to the bucket their kind names.
// Untagged documents are images when they decode as standard base64 and
// text otherwise, so a short word such as "abcd" is reported as an image.
package classify

import (
	"encoding/base64"
	"strings"

	"mmrag/internal/domain"
)

// Partition splits docs into images and texts, preserving input order in
// each bucket.
func Partition(docs []domain.Document) domain.Classified {
	var out domain.Classified
	for _, d := range docs {
		switch kindOf(d) {
		case domain.KindImage:
			mime := d.MIME
			if mime == "" {
				mime = domain.DefaultImageMIME
			}
			out.Images = append(out.Images, domain.Image{Base64: d.Content, MIME: mime})
		default:
			out.Texts = append(out.Texts, d.Content)
		}
	}
	return out
}

// Strings partitions untagged raw payloads.
func Strings(items []string) domain.Classified {
	docs := make([]domain.Document, len(items))
	for i, s := range items {
		docs[i] = domain.Document{Content: s}
	}
	return Partition(docs)
}

// IsBase64 reports whether s is non-empty standard padded base64 with no
// characters outside the alphabet.
func IsBase64(s string) bool {
	if s == "" || strings.ContainsAny(s, "\r\n") {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(s)
	return err == nil
}

func kindOf(d domain.Document) domain.Kind {
	if d.Kind != domain.KindUnknown {
		return d.Kind
	}
	if IsBase64(d.Content) {
		return domain.KindImage
	}
	return domain.KindText
}
