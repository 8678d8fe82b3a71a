package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
)

// Func pulls candidate price text out of a payload. It must not mutate the
// payload and must report false when it finds nothing.
type Func func(p *Payload) (string, bool)

// Method is a named extraction step.
type Method struct {
	Name string
	Func Func
}

// JSONLD reads the schema.org offer price from ld+json script blocks.
func JSONLD() Method {
	return Method{Name: "json-ld", Func: func(p *Payload) (string, bool) {
		doc := p.Doc()
		if doc == nil {
			return "", false
		}
		var (
			price string
			found bool
		)
		doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			body := strings.TrimSpace(s.Text())
			if !gjson.Valid(body) {
				return true
			}
			price, found = offerPrice(gjson.Parse(body), 0)
			return !found
		})
		return price, found
	}}
}

// offerPrice walks a JSON-LD node looking for offers.price. Arrays and
// @graph containers are searched in order.
func offerPrice(r gjson.Result, depth int) (string, bool) {
	if depth > 4 {
		return "", false
	}
	if r.IsArray() {
		for _, item := range r.Array() {
			if v, ok := offerPrice(item, depth+1); ok {
				return v, true
			}
		}
		return "", false
	}
	if !r.IsObject() {
		return "", false
	}
	if offers := r.Get("offers"); offers.Exists() {
		if v, ok := priceOf(offers); ok {
			return v, true
		}
	}
	var (
		price string
		found bool
	)
	r.ForEach(func(key, value gjson.Result) bool {
		if key.String() == "@graph" {
			price, found = offerPrice(value, depth+1)
			return false
		}
		return true
	})
	return price, found
}

func priceOf(offers gjson.Result) (string, bool) {
	if offers.IsArray() {
		for _, o := range offers.Array() {
			if v, ok := priceOf(o); ok {
				return v, true
			}
		}
		return "", false
	}
	for _, path := range []string{"price", "lowPrice", "priceSpecification.price"} {
		if v := offers.Get(path); v.Exists() && v.String() != "" {
			return v.String(), true
		}
	}
	return "", false
}

// NextData reads a gjson path out of the Next.js __NEXT_DATA__ block.
func NextData(path string) Method {
	return Method{Name: "next-data", Func: func(p *Payload) (string, bool) {
		doc := p.Doc()
		if doc == nil {
			return "", false
		}
		body := doc.Find("script#__NEXT_DATA__").First().Text()
		if body == "" {
			return "", false
		}
		v := gjson.Get(body, path)
		if !v.Exists() || v.String() == "" {
			return "", false
		}
		return v.String(), true
	}}
}

// MetaPrice reads microdata and OpenGraph price annotations.
func MetaPrice() Method {
	return Method{Name: "meta", Func: func(p *Payload) (string, bool) {
		doc := p.Doc()
		if doc == nil {
			return "", false
		}
		for _, sel := range []string{
			`meta[itemprop="price"]`,
			`meta[property="product:price:amount"]`,
			`meta[property="og:price:amount"]`,
			`[itemprop="price"]`,
		} {
			node := doc.Find(sel).First()
			if node.Length() == 0 {
				continue
			}
			if v, ok := node.Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true
			}
			if v := strings.TrimSpace(node.Text()); v != "" {
				return v, true
			}
		}
		return "", false
	}}
}

// Selector returns the text of the first element matching css.
func Selector(css string) Method {
	return ScopedSelector("", css)
}

// ScopedSelector returns the text of the first element matching css inside
// the first element matching scope. An empty scope means the whole document.
func ScopedSelector(scope, css string) Method {
	return Method{Name: "selector", Func: func(p *Payload) (string, bool) {
		root := scopeOf(p, scope)
		if root == nil {
			return "", false
		}
		text := strings.TrimSpace(root.Find(css).First().Text())
		return text, text != ""
	}}
}

// SplitPrice joins a price rendered as separate whole and fraction elements,
// as on Amazon result cards. Only digits of each part are kept.
func SplitPrice(scope, whole, fraction string) Method {
	return Method{Name: "split-price", Func: func(p *Payload) (string, bool) {
		root := scopeOf(p, scope)
		if root == nil {
			return "", false
		}
		w := digits(root.Find(whole).First().Text())
		if w == "" {
			return "", false
		}
		if f := digits(root.Find(fraction).First().Text()); f != "" {
			return w + "." + f, true
		}
		return w, true
	}}
}

// Regex applies a labeled pattern to the raw payload. The first capture group
// is the price text; without groups the whole match is used.
func Regex(pattern string) (Method, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Method{}, fmt.Errorf("compiling %q: %w", pattern, err)
	}
	return Method{Name: "regex", Func: func(p *Payload) (string, bool) {
		m := re.FindSubmatch(p.Raw)
		if m == nil {
			return "", false
		}
		if len(m) > 1 {
			return string(m[1]), len(m[1]) > 0
		}
		return string(m[0]), len(m[0]) > 0
	}}, nil
}

// MustRegex is Regex for patterns known at compile time.
func MustRegex(pattern string) Method {
	m, err := Regex(pattern)
	if err != nil {
		panic(err)
	}
	return m
}

func scopeOf(p *Payload, scope string) *goquery.Selection {
	doc := p.Doc()
	if doc == nil {
		return nil
	}
	if scope == "" {
		return doc.Selection
	}
	s := doc.Find(scope).First()
	if s.Length() == 0 {
		return nil
	}
	return s
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
