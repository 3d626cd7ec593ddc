// Package docstore reads the persisted side-table that maps identifiers to
// parent documents.
//
// The file is a flat JSON object. A value is either a string (plain text or
// a base64 image, type unknown) or an object carrying the type recorded at
// indexing time. Objects of any other shape are kept as text:
//
//	{"doc1": "hello world", "img1": {"kind": "image", "content": "...", "mime": "image/png"}}
package docstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"mmrag/internal/domain"
)

// Entry is the tagged form of a side-table value.
type Entry struct {
	Kind    domain.Kind `json:"kind"`
	Content string      `json:"content"`
	MIME    string      `json:"mime,omitempty"`
}

// ReadFile parses the side-table at path. A missing file yields an empty table.
func ReadFile(path string) (map[string]domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]domain.Document{}, nil
		}
		return nil, err
	}
	docs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return docs, nil
}

// Parse decodes a side-table JSON object.
func Parse(data []byte) (map[string]domain.Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	docs := make(map[string]domain.Document, len(raw))
	for id, v := range raw {
		doc, err := DecodeValue(v)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", id, err)
		}
		doc.ID = id
		docs[id] = doc
	}
	return docs, nil
}

// DecodeValue decodes one JSON side-table value. An object is a tagged entry
// only when it has a content field and no keys besides kind, content and mime;
// any other object is kept verbatim as untagged text.
func DecodeValue(v json.RawMessage) (domain.Document, error) {
	v = bytes.TrimSpace(v)
	if len(v) > 0 && v[0] == '{' {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(v, &fields); err != nil {
			return domain.Document{}, err
		}
		if !isEntry(fields) {
			return domain.Document{Content: string(v)}, nil
		}
		var e Entry
		if err := json.Unmarshal(v, &e); err != nil {
			return domain.Document{}, err
		}
		if err := checkKind(e.Kind); err != nil {
			return domain.Document{}, err
		}
		return domain.Document{Content: e.Content, Kind: e.Kind, MIME: e.MIME}, nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return domain.Document{}, errors.New("value must be a string or an object")
	}
	return domain.Document{Content: s}, nil
}

func isEntry(fields map[string]json.RawMessage) bool {
	if _, ok := fields["content"]; !ok {
		return false
	}
	for k := range fields {
		switch k {
		case "kind", "content", "mime":
		default:
			return false
		}
	}
	return true
}

func checkKind(k domain.Kind) error {
	switch k {
	case domain.KindText, domain.KindImage, domain.KindUnknown:
		return nil
	}
	return fmt.Errorf("unknown kind %q", k)
}

// EncodeValue serializes a document for stores that hold raw bytes. Every
// document is written as an Entry, untagged ones with an empty kind, so the
// content is never reinterpreted on the way back.
func EncodeValue(doc domain.Document) (string, error) {
	b, err := json.Marshal(Entry{Kind: doc.Kind, Content: doc.Content, MIME: doc.MIME})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeStored decodes a value written by EncodeValue.
func DecodeStored(id, v string) (domain.Document, error) {
	dec := json.NewDecoder(strings.NewReader(v))
	dec.DisallowUnknownFields()
	var e Entry
	if err := dec.Decode(&e); err != nil {
		return domain.Document{}, fmt.Errorf("stored document %q: %w", id, err)
	}
	if err := checkKind(e.Kind); err != nil {
		return domain.Document{}, fmt.Errorf("stored document %q: %w", id, err)
	}
	return domain.Document{ID: id, Content: e.Content, Kind: e.Kind, MIME: e.MIME}, nil
}

// SortedIDs returns the table keys in lexical order.
func SortedIDs(docs map[string]domain.Document) []string {
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
