package activity

import (
	"bytes"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// MaxHTMLSize caps snapshot markup.
const MaxHTMLSize = 2 * 1024 * 1024

var errHTMLTooLarge = errors.New("activity: snapshot html too large")

// detectCharset returns the best guess for data's encoding.
func detectCharset(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func utf8Reader(markup string) (*bytes.Reader, string) {
	data := []byte(markup)
	return bytes.NewReader(data), detectCharset(data)
}

// loadDocument parses markup for CSS selection.
func loadDocument(markup string) (*goquery.Document, error) {
	if len(markup) > MaxHTMLSize {
		return nil, errHTMLTooLarge
	}
	reader, enc := utf8Reader(markup)
	converted, err := charset.NewReader(reader, enc)
	if err != nil {
		return goquery.NewDocumentFromReader(strings.NewReader(markup))
	}
	return goquery.NewDocumentFromReader(converted)
}

// loadNode parses markup for XPath queries.
func loadNode(markup string) (*html.Node, error) {
	if len(markup) > MaxHTMLSize {
		return nil, errHTMLTooLarge
	}
	reader, enc := utf8Reader(markup)
	converted, err := charset.NewReader(reader, enc)
	if err != nil {
		return htmlquery.Parse(strings.NewReader(markup))
	}
	return htmlquery.Parse(converted)
}
