package imacros

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const tabRetryInterval = 500 * time.Millisecond

// NewTabHandler handles the TAB command. The sub-operations may appear
// either as positional flags (TAB CLOSE) or as KEY=VALUE parameters;
// precedence, first match wins: CLOSEALLOTHERS, CLOSE, OPEN/NEW, T.
func NewTabHandler(bridge BrowserBridge) Handler {
	return func(ctx *Context) HandlerResult {
		if bridge == nil {
			return Fail(ErrUnsupportedCommand, "no browser bridge configured")
		}
		bg := context.Background()

		if tabFlag(ctx, "CLOSEALLOTHERS") {
			resp := bridge.CloseOtherTabs(bg)
			if !resp.Success {
				return bridgeFailure(resp, ErrScriptError, "Failed to close other tabs")
			}
			ctx.state.SetStartTabIndex(0)
			return OK()
		}

		if tabFlag(ctx, "CLOSE") {
			resp := bridge.CloseTab(bg)
			if !resp.Success {
				return bridgeFailure(resp, ErrScriptError, "Failed to close tab")
			}
			return OK()
		}

		if tabFlag(ctx, "OPEN") || tabFlag(ctx, "NEW") {
			openURL, _ := ctx.GetParam("URL")
			resp := bridge.OpenTab(bg, openURL)
			if !resp.Success {
				return bridgeFailure(resp, ErrScriptError, "Failed to open tab")
			}
			return OK()
		}

		if raw, ok := ctx.GetParam("T"); ok {
			return handleTabSwitch(ctx, bridge, raw)
		}

		return Fail(ErrMissingParameter, "TAB requires one of T, OPEN, NEW, CLOSE, CLOSEALLOTHERS")
	}
}

func tabFlag(ctx *Context, name string) bool {
	return hasPositionalFlag(ctx.Command, name) || ctx.Command.HasParam(name)
}

func handleTabSwitch(ctx *Context, bridge BrowserBridge, raw string) HandlerResult {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return Fail(ErrInvalidParameter, "TAB T must be >= 1")
	}

	absIndex := ctx.state.StartTabIndex() + n - 1
	timeout := tabRetryTimeout(ctx)

	deadline := time.Now().Add(time.Duration(timeout * float64(time.Second)))
	var lastResp BridgeResponse
	for {
		lastResp = bridge.SwitchTab(context.Background(), absIndex)
		if lastResp.Success {
			return OK()
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(tabRetryInterval)
	}

	if ctx.state.ErrorIgnore() {
		return OK()
	}
	msg := lastResp.Error
	if msg == "" {
		msg = fmt.Sprintf("Tab %d does not exist", n)
	}
	return Fail(ErrScriptException, msg)
}

// tabRetryTimeout resolves the tab-switch retry budget: !TIMEOUT_TAG
// if set, else !TIMEOUT/10, else 6 seconds.
func tabRetryTimeout(ctx *Context) float64 {
	if v, ok := ctx.state.GetVariable("!TIMEOUT_TAG"); ok {
		if f, ok := ParseSeconds(v); ok {
			return f
		}
	}
	if v, ok := ctx.state.GetVariable("!TIMEOUT"); ok {
		if f, ok := ParseSeconds(v); ok {
			return f / 10
		}
	}
	return 6
}

func bridgeFailure(resp BridgeResponse, fallback ErrorCode, fallbackMsg string) HandlerResult {
	if resp.ErrorCode != 0 {
		msg := resp.Error
		if msg == "" {
			msg = fallbackMsg
		}
		return Fail(resp.ErrorCode, msg)
	}
	msg := resp.Error
	if msg == "" {
		msg = fallbackMsg
	}
	return Fail(fallback, msg)
}
