package extract

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// Payload is a fetched page. The HTML document is parsed at most once and
// shared by every method in a chain.
type Payload struct {
	Raw []byte

	doc    *goquery.Document
	parsed bool
}

// NewPayload wraps raw page bytes.
func NewPayload(raw []byte) *Payload {
	return &Payload{Raw: raw}
}

// Empty reports whether there is nothing to extract from.
func (p *Payload) Empty() bool {
	return p == nil || len(bytes.TrimSpace(p.Raw)) == 0
}

// Doc returns the parsed document, or nil if the payload is not parseable HTML.
func (p *Payload) Doc() *goquery.Document {
	if p.parsed {
		return p.doc
	}
	p.parsed = true
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Raw))
	if err == nil {
		p.doc = doc
	}
	return p.doc
}

// Text returns the raw payload as a string.
func (p *Payload) Text() string {
	return string(p.Raw)
}
