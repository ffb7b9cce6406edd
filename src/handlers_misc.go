package imacros

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NewClickHandler handles CLICK: a raw synthetic click at viewport
// coordinates X,Y, sent through the content script.
func NewClickHandler(sender ContentScriptSender) Handler {
	return func(ctx *Context) HandlerResult {
		if sender == nil {
			return Fail(ErrUnsupportedCommand, "no content script sender configured")
		}
		xRaw, okX := ctx.GetParam("X")
		yRaw, okY := ctx.GetParam("Y")
		if !okX || !okY {
			return Fail(ErrMissingParameter, "CLICK requires X and Y")
		}
		x, err := strconv.Atoi(xRaw)
		if err != nil {
			return Fail(ErrInvalidParameter, "CLICK X must be an integer")
		}
		y, err := strconv.Atoi(yRaw)
		if err != nil {
			return Fail(ErrInvalidParameter, "CLICK Y must be an integer")
		}
		button := strings.ToLower(firstOr(ctx, "BUTTON", "left"))
		clickCount := 1
		if n, ok := ctx.GetParam("STEPS"); ok {
			if v, err := strconv.Atoi(n); err == nil && v > 0 {
				clickCount = v
			}
		}
		resp := sender.SendClick(context.Background(), x, y, button, clickCount)
		if !resp.Success {
			return contentFailure(resp, ErrScriptError, "Failed to click")
		}
		return OK()
	}
}

// NewEventHandler handles EVENT: dispatches a synthetic DOM event
// against a TAG-style selector (reusing buildSelector's
// XPATH/CSS/POS-TYPE-ATTR precedence).
func NewEventHandler(sender ContentScriptSender) Handler {
	return func(ctx *Context) HandlerResult {
		if sender == nil {
			return Fail(ErrUnsupportedCommand, "no content script sender configured")
		}
		eventType, ok := ctx.GetParam("EVENT")
		if !ok {
			return Fail(ErrMissingParameter, "EVENT requires EVENT=<type>")
		}
		selector, failure, ok := buildSelector(ctx)
		if !ok {
			return failure
		}
		payload := map[string]interface{}{}
		if key, ok := ctx.GetParam("KEY"); ok {
			payload["key"] = key
		}
		if chars, ok := ctx.GetParam("CHARS"); ok {
			payload["chars"] = chars
		}
		resp := sender.SendEvent(context.Background(), eventType, selector, payload)
		if !resp.Success {
			return contentFailure(resp, ErrScriptError, "Failed to dispatch event")
		}
		return OK()
	}
}

func contentFailure(resp ContentScriptResponse, fallback ErrorCode, fallbackMsg string) HandlerResult {
	code := resp.ErrorCode
	if code == 0 {
		code = fallback
	}
	msg := resp.Error
	if msg == "" {
		msg = fallbackMsg
	}
	return Fail(code, msg)
}

// NewSetHandler handles SET: `SET name value` or `SET !VAR=value`.
// Reserved read-only names reject the write; an unknown name creates
// a user variable.
func NewSetHandler() Handler {
	return func(ctx *Context) HandlerResult {
		name, value, ok := setArgs(ctx)
		if !ok {
			return Fail(ErrMissingParameter, "SET requires a name and a value")
		}
		expanded := ctx.Expand(value)
		outcome := ctx.store.SetVariable(name, expanded)
		if !outcome.Success {
			return Fail(ErrInvalidParameter, name+" is read-only")
		}
		return OK(expanded)
	}
}

// NewAddHandler implements ADD: adds a numeric value to an existing
// (or zero-valued) user variable.
func NewAddHandler() Handler {
	return func(ctx *Context) HandlerResult {
		name, value, ok := setArgs(ctx)
		if !ok {
			return Fail(ErrMissingParameter, "ADD requires a name and a value")
		}
		delta, ok := ParseSeconds(ctx.Expand(value))
		if !ok {
			return Fail(ErrInvalidParameter, "ADD value must be numeric")
		}
		current := 0.0
		if v, ok := ctx.state.GetVariable(name); ok {
			if f, ok := ParseSeconds(v); ok {
				current = f
			}
		}
		total := current + delta
		outcome := ctx.store.SetVariable(name, formatNumber(total))
		if !outcome.Success {
			return Fail(ErrInvalidParameter, name+" is read-only")
		}
		return OK(total)
	}
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func setArgs(ctx *Context) (name, value string, ok bool) {
	if n, hasN := ctx.Command.Positional(0); hasN {
		if v, hasV := ctx.Command.Positional(1); hasV {
			return n, v, true
		}
	}
	for _, p := range ctx.Command.Parameters {
		if p.Key != "" {
			return p.Key, p.Value, true
		}
	}
	return "", "", false
}

// NewWaitHandler implements WAIT SECONDS=n, a non-busy sleep and a
// cooperative cancellation point.
func NewWaitHandler() Handler {
	return func(ctx *Context) HandlerResult {
		raw, ok := ctx.GetParam("SECONDS")
		if !ok {
			return Fail(ErrMissingParameter, "WAIT requires SECONDS")
		}
		seconds, ok := ParseSeconds(raw)
		if !ok {
			return Fail(ErrInvalidParameter, "WAIT SECONDS must be numeric")
		}
		time.Sleep(time.Duration(seconds * float64(time.Second)))
		return OK()
	}
}

// NewPauseHandler implements PAUSE: gate the executor until resumed.
func NewPauseHandler() Handler {
	return func(ctx *Context) HandlerResult {
		ctx.state.Pause()
		return OK()
	}
}

// NewStopwatchHandler implements STOPWATCH ID=<id> ACTION=START|STOP|LAP|RESET.
func NewStopwatchHandler() Handler {
	return func(ctx *Context) HandlerResult {
		id, ok := ctx.GetParam("ID")
		if !ok {
			id = "default"
		}
		action, _ := ctx.GetParam("ACTION")
		sw := ctx.state.Stopwatch(id)
		now := time.Now().UnixMilli()

		switch action {
		case "START":
			sw.StartTime = now
			sw.Running = true
		case "STOP":
			if !sw.Running {
				return Fail(ErrStopwatchNotRunning, "stopwatch "+id+" is not running")
			}
			sw.Accumulated += now - sw.StartTime
			sw.Running = false
		case "LAP":
			if !sw.Running {
				return Fail(ErrStopwatchNotRunning, "stopwatch "+id+" is not running")
			}
			sw.Laps = append(sw.Laps, now-sw.StartTime)
		case "RESET":
			*sw = Stopwatch{}
		default:
			return Fail(ErrInvalidParameter, "unknown STOPWATCH ACTION: "+action)
		}
		ctx.store.SetPrivileged("!STOPWATCH_"+id, sw.Accumulated)
		return OK()
	}
}

// NewVersionHandler reports the engine version into !VERSION.
func NewVersionHandler(version string) Handler {
	return func(ctx *Context) HandlerResult {
		ctx.store.SetPrivileged("!VERSION", version)
		return OK(version)
	}
}

// NewBackHandler implements BACK.
func NewBackHandler(bridge BrowserBridge) Handler {
	return func(ctx *Context) HandlerResult {
		if bridge == nil {
			return Fail(ErrUnsupportedCommand, "no browser bridge configured")
		}
		resp := bridge.GoBack(context.Background())
		if !resp.Success {
			return bridgeFailure(resp, ErrScriptError, "Failed to navigate back")
		}
		return OK()
	}
}

// NewRefreshHandler implements REFRESH.
func NewRefreshHandler(bridge BrowserBridge) Handler {
	return func(ctx *Context) HandlerResult {
		if bridge == nil {
			return Fail(ErrUnsupportedCommand, "no browser bridge configured")
		}
		resp := bridge.Refresh(context.Background())
		if !resp.Success {
			return bridgeFailure(resp, ErrScriptError, "Failed to refresh")
		}
		return OK()
	}
}

// NewFilterHandler implements FILTER via the NetworkManager collaborator.
func NewFilterHandler(net NetworkManager) Handler {
	return func(ctx *Context) HandlerResult {
		spec, ok := ctx.Command.Positional(0)
		if !ok {
			return Fail(ErrMissingParameter, "FILTER requires a filter spec")
		}
		if net == nil {
			return Fail(ErrUnsupportedCommand, "no network manager configured")
		}
		if err := net.SetFilter(context.Background(), ctx.Expand(spec)); err != nil {
			return Fail(ErrScriptError, err.Error())
		}
		return OK()
	}
}

// NewProxyHandler implements PROXY via the NetworkManager collaborator.
func NewProxyHandler(net NetworkManager) Handler {
	return func(ctx *Context) HandlerResult {
		spec, ok := ctx.Command.Positional(0)
		if !ok {
			return Fail(ErrMissingParameter, "PROXY requires a proxy spec")
		}
		if net == nil {
			return Fail(ErrUnsupportedCommand, "no network manager configured")
		}
		if err := net.SetProxy(context.Background(), ctx.Expand(spec)); err != nil {
			return Fail(ErrScriptError, err.Error())
		}
		return OK()
	}
}

// NewSaveAsHandler implements SAVEAS: it checks that TYPE, FOLDER or
// FILE is present and succeeds; nothing is saved or recorded here.
func NewSaveAsHandler() Handler {
	return func(ctx *Context) HandlerResult {
		_, hasType := ctx.GetParam("TYPE")
		_, hasFolder := ctx.GetParam("FOLDER")
		_, hasFile := ctx.GetParam("FILE")
		if !hasType && !hasFolder && !hasFile {
			return Fail(ErrMissingParameter, "SAVEAS requires TYPE/FOLDER/FILE")
		}
		return OK()
	}
}

// NewOnDownloadHandler implements ONDOWNLOAD as a no-op that always
// succeeds; its parameters are not stored.
func NewOnDownloadHandler() Handler {
	return func(ctx *Context) HandlerResult {
		return OK()
	}
}

// NewOnDialogHandler implements ONDIALOG via the DialogBridge.
func NewOnDialogHandler(dialog DialogBridge) Handler {
	return func(ctx *Context) HandlerResult {
		if dialog == nil {
			return Fail(ErrUnhandledDialog, "no dialog bridge configured")
		}
		button, _ := ctx.GetParam("BUTTON")
		content, _ := ctx.GetParam("CONTENT")
		dialog.HandleDialog(context.Background(), "confirm", content, button)
		return OK()
	}
}

// NewOnLoginHandler implements ONLOGIN by storing credentials into the
// read-only !LOGIN_USER/!LOGIN_PASSWORD slots; no dialog bridge is used.
func NewOnLoginHandler() Handler {
	return func(ctx *Context) HandlerResult {
		user, _ := ctx.GetParam("USER")
		password, _ := ctx.GetParam("PASSWORD")
		ctx.store.SetPrivileged("!LOGIN_USER", user)
		ctx.store.SetPrivileged("!LOGIN_PASSWORD", password)
		return OK()
	}
}

// NewPromptHandler implements PROMPT via the DialogBridge.
func NewPromptHandler(dialog DialogBridge) Handler {
	return func(ctx *Context) HandlerResult {
		message, _ := ctx.Command.Positional(0)
		if dialog == nil {
			return Fail(ErrUnhandledDialog, "no dialog bridge configured")
		}
		resp := dialog.HandleDialog(context.Background(), "prompt", ctx.Expand(message), "")
		if !resp.Accepted {
			return Fail(ErrUserAbort, "prompt dismissed")
		}
		return OK(resp.Text)
	}
}

// unsupportedHandler returns UNSUPPORTED_COMMAND for OS-level commands
// the engine deliberately stubs out (CMDLINE, DISCONNECT, REDIAL,
// IMAGECLICK).
func unsupportedHandler(name string) Handler {
	return func(ctx *Context) HandlerResult {
		return Fail(ErrUnsupportedCommand, fmt.Sprintf("%s is not supported", name))
	}
}
