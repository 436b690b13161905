package httpclient

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ExtractParamsScript locates the first `<script id="params"
// type="application/json">...</script>` element in an HTML document and
// returns its text content. Attribute order on the script tag does not
// matter. Returns a parse error if no such element exists.
func ExtractParamsScript(body []byte) (string, error) {
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse error: malformed HTML: %w", err)
	}

	var found string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "script" && isParamsScript(n) {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				found = n.FirstChild.Data
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if found == "" {
		return "", fmt.Errorf("parse error: missing params script block")
	}
	return found, nil
}

func isParamsScript(n *html.Node) bool {
	var id, typ string
	for _, a := range n.Attr {
		switch strings.ToLower(a.Key) {
		case "id":
			id = a.Val
		case "type":
			typ = a.Val
		}
	}
	return id == "params" && typ == "application/json"
}
