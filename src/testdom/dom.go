// Package testdom provides an in-memory DOM test double for
// BrowserBridge/ContentScriptSender, built on golang.org/x/net/html
// and github.com/PuerkitoBio/goquery, so executor and handler tests
// can run against real selector/extraction logic without a browser.
package testdom

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	imacros "github.com/chapelsoftware/iMacros-Remastered-sub001/src"
)

// Page is a single in-memory document the bridge navigates between.
type Page struct {
	URL   string
	Title string
	HTML  string
}

// Bridge is a BrowserBridge + ContentScriptSender test double backed
// by a small set of fixture pages keyed by URL.
type Bridge struct {
	pages      map[string]*Page
	current    *Page
	fallback   bool // Navigate succeeds for any URL, synthesizing a blank page
	tabs       []string
	activeTab  int
	frameStack []int
}

// NewBridge creates a bridge pre-loaded with fixture pages.
func NewBridge(pages ...Page) *Bridge {
	b := &Bridge{pages: make(map[string]*Page), tabs: []string{""}}
	for i := range pages {
		p := pages[i]
		b.pages[p.URL] = &p
	}
	return b
}

// AllowAnyURL makes Navigate succeed for URLs not in the fixture set,
// synthesizing an empty page — useful for URL-handler-only tests.
func (b *Bridge) AllowAnyURL() *Bridge {
	b.fallback = true
	return b
}

func (b *Bridge) Navigate(ctx context.Context, url string) imacros.BridgeResponse {
	page, ok := b.pages[url]
	if !ok {
		if !b.fallback {
			return imacros.BridgeResponse{Success: false, Error: "no fixture page for " + url}
		}
		page = &Page{URL: url}
		b.pages[url] = page
	}
	b.current = page
	b.tabs[b.activeTab] = url
	return imacros.BridgeResponse{Success: true, Data: map[string]interface{}{"url": page.URL, "title": page.Title}}
}

func (b *Bridge) GetCurrentURL(ctx context.Context) imacros.BridgeResponse {
	if b.current == nil {
		return imacros.BridgeResponse{Success: false, Error: "no page loaded"}
	}
	return imacros.BridgeResponse{Success: true, Data: map[string]interface{}{"url": b.current.URL, "title": b.current.Title}}
}

func (b *Bridge) GoBack(ctx context.Context) imacros.BridgeResponse  { return imacros.BridgeResponse{Success: true} }
func (b *Bridge) Refresh(ctx context.Context) imacros.BridgeResponse { return imacros.BridgeResponse{Success: true} }

func (b *Bridge) OpenTab(ctx context.Context, url string) imacros.BridgeResponse {
	b.tabs = append(b.tabs, url)
	b.activeTab = len(b.tabs) - 1
	if url != "" {
		b.Navigate(ctx, url)
	}
	return imacros.BridgeResponse{Success: true, Data: map[string]interface{}{"tabIndex": b.activeTab}}
}

func (b *Bridge) SwitchTab(ctx context.Context, tabIndex int) imacros.BridgeResponse {
	if tabIndex < 0 || tabIndex >= len(b.tabs) {
		return imacros.BridgeResponse{Success: false, Error: "tab index out of range"}
	}
	b.activeTab = tabIndex
	if url := b.tabs[tabIndex]; url != "" {
		b.Navigate(ctx, url)
	}
	return imacros.BridgeResponse{Success: true}
}

func (b *Bridge) CloseTab(ctx context.Context) imacros.BridgeResponse {
	if len(b.tabs) <= 1 {
		return imacros.BridgeResponse{Success: false, Error: "cannot close the last tab"}
	}
	b.tabs = append(b.tabs[:b.activeTab], b.tabs[b.activeTab+1:]...)
	if b.activeTab >= len(b.tabs) {
		b.activeTab = len(b.tabs) - 1
	}
	return imacros.BridgeResponse{Success: true}
}

func (b *Bridge) CloseOtherTabs(ctx context.Context) imacros.BridgeResponse {
	current := b.tabs[b.activeTab]
	b.tabs = []string{current}
	b.activeTab = 0
	return imacros.BridgeResponse{Success: true}
}

func (b *Bridge) SelectFrame(ctx context.Context, frameIndex int, frameName string) imacros.BridgeResponse {
	if frameName != "" {
		return imacros.BridgeResponse{Success: false, ErrorCode: imacros.ErrFrameNotFound, Error: "named frames not in fixture set"}
	}
	if frameIndex != 0 {
		return imacros.BridgeResponse{Success: false, ErrorCode: imacros.ErrFrameNotFound, Error: fmt.Sprintf("frame %d not found", frameIndex)}
	}
	return imacros.BridgeResponse{Success: true}
}

func (b *Bridge) document() (*goquery.Document, error) {
	if b.current == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	root, err := html.Parse(strings.NewReader(b.current.HTML))
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromNode(root), nil
}

// SendTag resolves an ElementSelector against the current page and
// performs the requested TagAction.
func (b *Bridge) SendTag(ctx context.Context, msg imacros.TagCommandMessage) imacros.ContentScriptResponse {
	doc, err := b.document()
	if err != nil {
		return imacros.ContentScriptResponse{Success: false, Error: err.Error(), ErrorCode: imacros.ErrElementNotFound}
	}

	sel, err := resolveSelection(doc, msg.Selector)
	if err != nil {
		return imacros.ContentScriptResponse{Success: false, Error: err.Error(), ErrorCode: imacros.ErrElementNotFound}
	}

	switch msg.Action.Kind {
	case "extract":
		val, err := extractValue(sel, msg.Action.Extract)
		if err != nil {
			return imacros.ContentScriptResponse{Success: false, Error: err.Error(), ErrorCode: imacros.ErrInvalidParameter}
		}
		return imacros.ContentScriptResponse{Success: true, ExtractedData: &imacros.ExtractedData{Values: []string{val}}}
	case "click", "content", "submit", "reset":
		return imacros.ContentScriptResponse{Success: true, ElementInfo: &imacros.ElementInfo{TagName: goquery.NodeName(sel)}}
	default:
		return imacros.ContentScriptResponse{Success: true}
	}
}

func (b *Bridge) SendClick(ctx context.Context, x, y int, button string, clickCount int) imacros.ContentScriptResponse {
	return imacros.ContentScriptResponse{Success: true}
}

func (b *Bridge) SendEvent(ctx context.Context, eventType string, selector imacros.ElementSelector, payload map[string]interface{}) imacros.ContentScriptResponse {
	return imacros.ContentScriptResponse{Success: true}
}

func (b *Bridge) SendSearch(ctx context.Context, sourceType, pattern string, ignoreCase bool, extractPattern string) imacros.ContentScriptResponse {
	return imacros.ContentScriptResponse{Success: false, ErrorCode: imacros.ErrElementNotFound, Error: "testdom does not implement page-text search"}
}

// resolveSelection builds a goquery selection from an ElementSelector,
// preferring CSS, then the TYPE/ATTR/POS triple. XPATH is not
// supported by this test double.
func resolveSelection(doc *goquery.Document, sel imacros.ElementSelector) (*goquery.Selection, error) {
	if sel.XPath != "" {
		return nil, fmt.Errorf("testdom does not support XPATH selectors")
	}
	if sel.CSS != "" {
		found := doc.Find(sel.CSS)
		if found.Length() == 0 {
			return nil, fmt.Errorf("no element matches CSS %q", sel.CSS)
		}
		return found.First(), nil
	}

	css := buildCSSSelector(sel)
	candidates := doc.Find(css)
	candidates = candidates.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return matchesAttrs(s, sel.Attrs)
	})
	if candidates.Length() == 0 {
		return nil, fmt.Errorf("no element matches selector %s", css)
	}

	idx := sel.Pos
	if idx < 0 {
		idx = candidates.Length() + idx + 1
	}
	if idx < 1 || idx > candidates.Length() {
		return nil, fmt.Errorf("POS %d out of range (%d candidates)", sel.Pos, candidates.Length())
	}
	return candidates.Eq(idx - 1), nil
}

func buildCSSSelector(sel imacros.ElementSelector) string {
	tag := "*"
	if sel.Type != "" && sel.Type != "*" {
		tag = strings.ToLower(strings.SplitN(sel.Type, ":", 2)[0])
	}
	var b strings.Builder
	b.WriteString(tag)
	for _, attr := range sel.Attrs {
		writeAttrSelector(&b, attr)
	}
	return b.String()
}

func writeAttrSelector(b *strings.Builder, attr imacros.AttrMatch) {
	if attr.Wildcard {
		return // handled by matchesAttrs
	}
	switch attr.Key {
	case "ID":
		fmt.Fprintf(b, "[id=%q]", attr.Value)
	case "NAME":
		fmt.Fprintf(b, "[name=%q]", attr.Value)
	case "CLASS":
		fmt.Fprintf(b, ".%s", attr.Value)
	case "HREF":
		fmt.Fprintf(b, "[href=%q]", attr.Value)
	case "TXT", "TXTALL":
		// no CSS equivalent; handled by matchesAttrs
	default:
		fmt.Fprintf(b, "[%s=%q]", strings.ToLower(attr.Key), attr.Value)
	}
}

// matchesAttrs applies the clauses CSS cannot express: text content
// and wildcard values.
func matchesAttrs(s *goquery.Selection, attrs []imacros.AttrMatch) bool {
	for _, attr := range attrs {
		switch {
		case attr.Key == "TXT" || attr.Key == "TXTALL":
			if !wildcardMatch(attr.Value, strings.TrimSpace(s.Text())) {
				return false
			}
		case attr.Wildcard:
			v, _ := s.Attr(strings.ToLower(attr.Key))
			if !wildcardMatch(attr.Value, v) {
				return false
			}
		}
	}
	return true
}

// wildcardMatch matches a pattern where `*` stands for any run of
// characters, everything else literal.
func wildcardMatch(pattern, text string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == text
	}
	if !strings.HasPrefix(text, parts[0]) {
		return false
	}
	text = text[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		if part == "" {
			continue
		}
		i := strings.Index(text, part)
		if i < 0 {
			return false
		}
		text = text[i+len(part):]
	}
	return strings.HasSuffix(text, parts[len(parts)-1])
}

// extractValue renders the requested extract type from a selection.
func extractValue(sel *goquery.Selection, extractType string) (string, error) {
	switch strings.ToUpper(extractType) {
	case "TXT":
		return strings.TrimSpace(sel.Text()), nil
	case "TXTALL":
		return sel.Text(), nil
	case "HTM":
		html, err := goquery.OuterHtml(sel)
		return html, err
	case "HREF":
		v, _ := sel.Attr("href")
		return v, nil
	case "TITLE":
		v, _ := sel.Attr("title")
		return v, nil
	case "ALT":
		v, _ := sel.Attr("alt")
		return v, nil
	case "VALUE":
		v, _ := sel.Attr("value")
		return v, nil
	case "SRC":
		v, _ := sel.Attr("src")
		return v, nil
	case "ID":
		v, _ := sel.Attr("id")
		return v, nil
	case "CLASS":
		v, _ := sel.Attr("class")
		return v, nil
	case "NAME":
		v, _ := sel.Attr("name")
		return v, nil
	case "CHECKED":
		_, checked := sel.Attr("checked")
		return strconv.FormatBool(checked), nil
	default:
		if strings.HasPrefix(strings.ToUpper(extractType), "ATTR:") {
			name := extractType[len("ATTR:"):]
			v, _ := sel.Attr(name)
			return v, nil
		}
		return "", fmt.Errorf("unsupported extract type %s", extractType)
	}
}
