package imacros

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const frameRetryInterval = 500 * time.Millisecond

// NewFrameHandler handles FRAME F=<n> (0 = main document) and
// FRAME NAME=<name>. With !TIMEOUT_STEP unset a single attempt is
// made, deliberately stricter than TAB's retry.
func NewFrameHandler(bridge BrowserBridge) Handler {
	return func(ctx *Context) HandlerResult {
		if bridge == nil {
			return Fail(ErrUnsupportedCommand, "no browser bridge configured")
		}
		if raw, ok := ctx.GetParam("F"); ok {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return Fail(ErrInvalidParameter, "FRAME F must be a non-negative integer")
			}
			return switchFrame(ctx, bridge, n, 0, "", fmt.Sprintf("Frame %d not found", n))
		}
		if name, ok := ctx.GetParam("NAME"); ok {
			return switchFrame(ctx, bridge, 0, 0, name, fmt.Sprintf("Frame %q not found", name))
		}
		return Fail(ErrMissingParameter, "FRAME requires F=<n> or NAME=<name>")
	}
}

func switchFrame(ctx *Context, bridge BrowserBridge, frameIndex, _ int, frameName, defaultMsg string) HandlerResult {
	bg := context.Background()
	timeout, hasTimeout := frameRetryTimeout(ctx)

	deadline := time.Now()
	if hasTimeout {
		deadline = deadline.Add(time.Duration(timeout * float64(time.Second)))
	}

	var lastResp BridgeResponse
	for {
		lastResp = bridge.SelectFrame(bg, frameIndex, frameName)
		if lastResp.Success {
			return OK()
		}
		if !hasTimeout || time.Now().After(deadline) {
			break
		}
		time.Sleep(frameRetryInterval)
	}

	bridge.SelectFrame(bg, 0, "")

	msg := lastResp.Error
	if msg == "" {
		msg = defaultMsg
	}
	return Fail(ErrFrameNotFound, msg)
}

// frameRetryTimeout returns (!TIMEOUT_STEP, true) when set, else
// (0, false) meaning a single attempt.
func frameRetryTimeout(ctx *Context) (float64, bool) {
	v, ok := ctx.state.GetVariable("!TIMEOUT_STEP")
	if !ok {
		return 0, false
	}
	f, ok := ParseSeconds(v)
	if !ok {
		return 0, false
	}
	return f, true
}
