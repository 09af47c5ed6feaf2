// Package stateblob locates the JSON state the marketplace embeds in its
// server-rendered pages and indexes it by route key.
package stateblob

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/law-makers/autospot-crawl/internal/crawlerr"
)

// ScriptID is the id of the script element carrying the state
const ScriptID = "serverApp-state"

var scriptPattern = regexp.MustCompile(`(?s)<script id="serverApp-state" type="application/json">(.*?)</script>`)

// ErrNoBlob is returned when a page carries no usable state
var ErrNoBlob = errors.New("no state blob")

type entry struct {
	key   string
	value json.RawMessage
}

// Blob is the parsed state, keys kept in document order
type Blob struct {
	entries []entry
}

// Extract parses body and returns its state blob
func Extract(body []byte) (*Blob, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return extractRaw(body)
	}
	return ExtractDocument(doc, body)
}

// ExtractDocument reads the blob from an already parsed document. body is
// the raw response, searched with a regular expression when the structural
// query finds nothing.
func ExtractDocument(doc *goquery.Document, body []byte) (*Blob, error) {
	if doc != nil {
		script := doc.Find("script#" + ScriptID).First()
		if script.Length() > 0 {
			if text := strings.TrimSpace(script.Text()); text != "" {
				return parse([]byte(text))
			}
		}
	}
	return extractRaw(body)
}

func extractRaw(body []byte) (*Blob, error) {
	m := scriptPattern.FindSubmatch(body)
	if m == nil {
		return nil, crawlerr.Parse("state script not found", ErrNoBlob)
	}
	return parse(m[1])
}

// parse decodes a top-level object while keeping key order
func parse(data []byte) (*Blob, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, crawlerr.Parse("invalid state JSON", errors.Join(ErrNoBlob, err))
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, crawlerr.Parse("state is not an object", ErrNoBlob)
	}

	blob := &Blob{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, crawlerr.Parse("invalid state JSON", errors.Join(ErrNoBlob, err))
		}
		key, ok := tok.(string)
		if !ok {
			return nil, crawlerr.Parse("invalid state key", ErrNoBlob)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, crawlerr.Parse(fmt.Sprintf("invalid value for %q", key), errors.Join(ErrNoBlob, err))
		}
		blob.entries = append(blob.entries, entry{key: key, value: value})
	}

	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, crawlerr.Parse("invalid state JSON", errors.Join(ErrNoBlob, err))
	}
	return blob, nil
}

// Keys returns the blob keys in document order
func (b *Blob) Keys() []string {
	if b == nil {
		return nil
	}
	keys := make([]string, len(b.entries))
	for i, e := range b.entries {
		keys[i] = e.key
	}
	return keys
}

// Len returns the number of keys
func (b *Blob) Len() int {
	if b == nil {
		return 0
	}
	return len(b.entries)
}

// Find returns the key and raw value of the first entry whose key contains fragment
func (b *Blob) Find(fragment string) (string, json.RawMessage, bool) {
	if b == nil {
		return "", nil, false
	}
	for _, e := range b.entries {
		if strings.Contains(e.key, fragment) {
			return e.key, e.value, true
		}
	}
	return "", nil, false
}

// FindBody returns the "body" member of the first entry whose key contains
// fragment, or nil when there is no such entry or it has no body.
func (b *Blob) FindBody(fragment string) json.RawMessage {
	_, value, ok := b.Find(fragment)
	if !ok {
		return nil
	}
	var wrapper struct {
		Body json.RawMessage `json:"body"`
	}
	if err := json.Unmarshal(value, &wrapper); err != nil {
		return nil
	}
	if len(wrapper.Body) == 0 || string(wrapper.Body) == "null" {
		return nil
	}
	return wrapper.Body
}

// DecodeBody unmarshals the body found for fragment into v. It reports
// false when no body exists.
func (b *Blob) DecodeBody(fragment string, v any) (bool, error) {
	body := b.FindBody(fragment)
	if body == nil {
		return false, nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return true, crawlerr.Parse(fmt.Sprintf("decode body for %q", fragment), err)
	}
	return true, nil
}
