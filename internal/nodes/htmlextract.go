package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/flowgraph/runtime/internal/record"
)

// HtmlExtractConfig configures HtmlExtract. Mode is "text", "html", or
// "attr:<name>" to pull one attribute's value, matching the Rust
// original's ExtractMode enum.
type HtmlExtractConfig struct {
	Selector string
	Mode     string
}

// HtmlExtract runs a CSS selector (via goquery, the ecosystem's
// golang.org/x/net/html-based equivalent of the Rust original's scraper
// crate) against the HTML content of each input record and adds an
// "extracted" field holding one string per matched element. The HTML
// content is looked up, in order, on the record's "html", "content", or
// "body" field, or the record itself when it is a bare string, matching
// html_extract_node.rs's input-shape fallback. A record with no
// recognizable HTML content is forwarded with "extracted" set to an
// empty list rather than dropped.
type HtmlExtract struct {
	Cfg HtmlExtractConfig
}

func (h HtmlExtract) Run(_ context.Context, inputs []In, outputs []Out) error {
	for v := range inputs[0] {
		out, err := h.extract(v)
		if err != nil {
			return err
		}
		outputs[0] <- out
	}
	return nil
}

func (h HtmlExtract) extract(v record.Record) (record.Record, error) {
	content, ok := h.htmlContent(v)
	fields := make(map[string]record.Record)
	if m, isMap := v.Map(); isMap {
		for k, val := range m {
			fields[k] = val
		}
	}

	if !ok {
		fields["extracted"] = record.FromNative([]interface{}{})
		return record.Map(fields), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return record.Null, fmt.Errorf("html extract: parse: %w", err)
	}

	var values []interface{}
	doc.Find(h.Cfg.Selector).Each(func(_ int, sel *goquery.Selection) {
		switch {
		case h.Cfg.Mode == "html":
			text, _ := sel.Html()
			values = append(values, text)
		case strings.HasPrefix(h.Cfg.Mode, "attr:"):
			attr := strings.TrimPrefix(h.Cfg.Mode, "attr:")
			text, _ := sel.Attr(attr)
			values = append(values, text)
		default:
			values = append(values, strings.Join(strings.Fields(sel.Text()), " "))
		}
	})

	fields["extracted"] = record.FromNative(values)
	return record.Map(fields), nil
}

func (h HtmlExtract) htmlContent(v record.Record) (string, bool) {
	if s, ok := v.StringValue(); ok {
		return s, true
	}
	m, ok := v.Map()
	if !ok {
		return "", false
	}
	for _, key := range []string{"html", "content", "body"} {
		if field, ok := m[key]; ok {
			if s, ok := field.StringValue(); ok {
				return s, true
			}
		}
	}
	return "", false
}
