package imacros

import (
	"context"
	"strconv"
	"strings"
)

const eanfSentinel = "#EANF#"
const defaultTagTimeoutSeconds = 6

var extractTypes = map[string]bool{
	"TXT": true, "HTM": true, "HREF": true, "TITLE": true, "ALT": true,
	"VALUE": true, "SRC": true, "ID": true, "CLASS": true, "NAME": true,
	"TXTALL": true, "CHECKED": true,
}

// NewTagHandler handles TAG: selector construction, the
// fill/extract/click/submit/reset actions, and the historical #EANF#
// compatibility behavior for missing extract targets.
func NewTagHandler(sender ContentScriptSender) Handler {
	return func(ctx *Context) HandlerResult {
		if sender == nil {
			return Fail(ErrUnsupportedCommand, "no content script sender configured")
		}
		selector, failure, ok := buildSelector(ctx)
		if !ok {
			return failure
		}

		action, failure, ok := buildAction(ctx)
		if !ok {
			return failure
		}

		timeout := tagTimeout(ctx)
		resp := sender.SendTag(context.Background(), TagCommandMessage{
			Selector:    selector,
			Action:      action,
			Timeout:     timeout,
			WaitVisible: true,
		})

		if !resp.Success {
			if resp.ErrorCode == ErrElementNotFound && action.Kind == "extract" {
				ctx.state.AddExtract(eanfSentinel)
				return OK()
			}
			code := resp.ErrorCode
			if code == 0 {
				code = ErrElementNotFound
			}
			msg := resp.Error
			if msg == "" {
				msg = DefaultMessage(code)
			}
			return Fail(code, msg)
		}

		if selector.Pos != 0 {
			ctx.state.SetAnchorTagIndex(selector.Pos)
		}

		if action.Kind == "extract" {
			if resp.ExtractedData != nil && len(resp.ExtractedData.Values) > 0 {
				for _, v := range resp.ExtractedData.Values {
					ctx.state.AddExtract(v)
				}
			} else {
				ctx.state.AddExtract("")
			}
		}
		return OK()
	}
}

// buildSelector implements the selector-construction precedence:
// XPATH alone, else CSS alone, else POS/TYPE/ATTR.
func buildSelector(ctx *Context) (ElementSelector, HandlerResult, bool) {
	if xpath, ok := ctx.GetParam("XPATH"); ok {
		return ElementSelector{XPath: xpath}, HandlerResult{}, true
	}
	if css, ok := ctx.GetParam("CSS"); ok {
		return ElementSelector{CSS: css}, HandlerResult{}, true
	}

	sel := ElementSelector{Type: "*"}
	if t, ok := ctx.GetParam("TYPE"); ok {
		sel.Type = strings.ToUpper(t)
	}

	if posRaw, ok := ctx.GetParam("POS"); ok {
		if strings.HasPrefix(strings.ToUpper(posRaw), "R") {
			k, err := strconv.Atoi(posRaw[1:])
			if err != nil || k == 0 {
				return ElementSelector{}, Fail(ErrInvalidParameter, "POS=R<k> requires a non-zero integer"), false
			}
			sel.Pos = ctx.state.AnchorTagIndex() + k
			sel.Relative = true
		} else {
			n, err := strconv.Atoi(posRaw)
			if err != nil {
				return ElementSelector{}, Fail(ErrInvalidParameter, "invalid POS value"), false
			}
			sel.Pos = n
		}
	} else {
		sel.Pos = 1
	}

	if attrRaw, ok := ctx.GetParam("ATTR"); ok {
		matches, err := parseAttrClauses(attrRaw)
		if err != nil {
			return ElementSelector{}, Fail(ErrInvalidParameter, err.Error()), false
		}
		sel.Attrs = append(sel.Attrs, matches...)
	}
	sel.Attrs = append(sel.Attrs, collectColonAttrParams(ctx)...)

	return sel, HandlerResult{}, true
}

// collectColonAttrParams handles the recorder's ATTR:KEY=VALUE
// parameter form, distinct from the compound ATTR=KEY:value&&KEY:value
// selector form above.
func collectColonAttrParams(ctx *Context) []AttrMatch {
	var out []AttrMatch
	for _, p := range ctx.Command.Parameters {
		if strings.HasPrefix(p.Key, "ATTR:") {
			key := strings.TrimPrefix(p.Key, "ATTR:")
			value := ctx.Expand(p.Value)
			out = append(out, AttrMatch{Key: key, Value: value, Wildcard: strings.Contains(value, "*")})
		}
	}
	return out
}

func parseAttrClauses(raw string) ([]AttrMatch, error) {
	clauses := strings.Split(raw, "&&")
	out := make([]AttrMatch, 0, len(clauses))
	for _, clause := range clauses {
		idx := strings.Index(clause, ":")
		if idx < 0 {
			return nil, errInvalidAttrClause(clause)
		}
		key := strings.ToUpper(strings.TrimSpace(clause[:idx]))
		value := unescapeTagValue(clause[idx+1:])
		out = append(out, AttrMatch{
			Key:      key,
			Value:    value,
			Wildcard: strings.Contains(value, "*"),
		})
	}
	return out, nil
}

func errInvalidAttrClause(clause string) error {
	return &invalidAttrError{clause: clause}
}

type invalidAttrError struct{ clause string }

func (e *invalidAttrError) Error() string {
	return "invalid ATTR clause: " + e.clause
}

func unescapeTagValue(v string) string {
	r := strings.NewReplacer("<SP>", " ", "<BR>", "\n", "<TAB>", "\t")
	return r.Replace(v)
}

// buildAction determines whether the command fills, submits, resets,
// extracts, or clicks.
func buildAction(ctx *Context) (TagAction, HandlerResult, bool) {
	if content, ok := ctx.GetParam("CONTENT"); ok {
		switch content {
		case "<SUBMIT>":
			return TagAction{Kind: "submit"}, HandlerResult{}, true
		case "<RESET>":
			return TagAction{Kind: "reset"}, HandlerResult{}, true
		default:
			return TagAction{Kind: "content", Content: unescapeTagValue(content)}, HandlerResult{}, true
		}
	}
	if extract, ok := ctx.GetParam("EXTRACT"); ok {
		if strings.HasPrefix(strings.ToUpper(extract), "ATTR:") {
			if extract[len("ATTR:"):] == "" {
				return TagAction{}, Fail(ErrInvalidParameter, "EXTRACT=ATTR: requires an attribute name"), false
			}
			return TagAction{Kind: "extract", Extract: extract}, HandlerResult{}, true
		}
		if !extractTypes[strings.ToUpper(extract)] {
			return TagAction{}, Fail(ErrInvalidParameter, "unknown EXTRACT type: "+extract), false
		}
		return TagAction{Kind: "extract", Extract: extract}, HandlerResult{}, true
	}
	return TagAction{Kind: "click"}, HandlerResult{}, true
}

func tagTimeout(ctx *Context) float64 {
	if v, ok := ctx.state.GetVariable("!TIMEOUT_TAG"); ok {
		if f, ok := ParseSeconds(v); ok {
			return f
		}
	}
	return defaultTagTimeoutSeconds
}
