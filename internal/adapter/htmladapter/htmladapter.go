package htmladapter

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"regexp"

	"golang.org/x/net/html"

	"github.com/jgivc/mfdl/internal/common"
)

var (
	downloadHostRegexp = regexp.MustCompile(`https://download\d+\..+`)

	gzipMagic = []byte{0x1f, 0x8b}
)

// Decompress gunzips payload. Payloads that are not gzip are returned as is.
func Decompress(payload []byte) ([]byte, error) {
	if !bytes.HasPrefix(payload, gzipMagic) {
		return payload, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		if errors.Is(err, gzip.ErrHeader) {
			return payload, nil
		}

		return nil, fmt.Errorf("cannot open gzip payload: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("cannot decompress payload: %w", err)
	}

	return data, nil
}

// ResolveLink extracts the real download link from an obfuscation page.
// The page may be gzip compressed.
func ResolveLink(payload []byte) (string, error) {
	body, err := Decompress(payload)
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("cannot parse page: %w", err)
	}

	if link := findAnchor(doc); link != "" {
		return link, nil
	}

	return "", common.ErrLinkNotFound
}

func findAnchor(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, a := range n.Attr {
			if a.Key == "href" && downloadHostRegexp.MatchString(a.Val) {
				return a.Val
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if link := findAnchor(c); link != "" {
			return link
		}
	}

	return ""
}
