package imacros

import (
	"context"
	"net/url"
	"strings"
)

// NewURLHandler handles URL GOTO=<url> and URL CURRENT.
func NewURLHandler(bridge BrowserBridge) Handler {
	return func(ctx *Context) HandlerResult {
		if bridge == nil {
			return Fail(ErrUnsupportedCommand, "no browser bridge configured")
		}
		if _, ok := ctx.GetParam("GOTO"); ok {
			return handleURLGoto(ctx, bridge)
		}
		if hasPositionalFlag(ctx.Command, "CURRENT") || ctx.Command.HasParam("CURRENT") {
			return handleURLCurrent(ctx, bridge)
		}
		return Fail(ErrMissingParameter, "URL requires GOTO=<url> or the CURRENT flag")
	}
}

func handleURLGoto(ctx *Context, bridge BrowserBridge) HandlerResult {
	raw, _ := ctx.GetParam("GOTO")
	target := raw
	if !hasScheme(target) {
		target = "http://" + target
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Host == "" {
		return Fail(ErrInvalidParameter, "invalid URL: "+raw)
	}

	resp := bridge.Navigate(context.Background(), target)
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "Failed to navigate to " + target
		}
		return Fail(ErrPageTimeout, msg)
	}

	ctx.store.SetURL(target)
	if title, ok := resp.Data["title"].(string); ok && title != "" {
		ctx.store.SetPrivileged("!DOCUMENT_TITLE", title)
	}
	return OK(target)
}

func handleURLCurrent(ctx *Context, bridge BrowserBridge) HandlerResult {
	resp := bridge.GetCurrentURL(context.Background())
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "Failed to retrieve current URL"
		}
		return Fail(ErrScriptError, msg)
	}
	current, _ := resp.Data["url"].(string)
	ctx.store.SetURL(current)
	if title, ok := resp.Data["title"].(string); ok && title != "" {
		ctx.store.SetPrivileged("!DOCUMENT_TITLE", title)
	}
	return OK(current)
}

// hasScheme reports whether text carries a URL scheme, i.e. a ':'
// appears before any '/'.
func hasScheme(text string) bool {
	colon := strings.IndexByte(text, ':')
	if colon < 0 {
		return false
	}
	slash := strings.IndexByte(text, '/')
	if slash < 0 {
		return true
	}
	return colon < slash
}
