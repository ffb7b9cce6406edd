package imacros

import (
	"context"
	"regexp"
	"strings"
)

// NewExtractHandler handles standalone EXTRACT: expand variables,
// append to the extract list, return the literal. Only useful for
// constants; DOM extraction goes through TAG … EXTRACT=… .
func NewExtractHandler() Handler {
	return func(ctx *Context) HandlerResult {
		literal, ok := ctx.Command.Positional(0)
		if !ok {
			return Fail(ErrMissingParameter, "EXTRACT requires a literal value")
		}
		expanded := ctx.Expand(literal)
		ctx.state.AddExtract(expanded)
		return OK(expanded)
	}
}

// NewSearchHandler handles SEARCH SOURCE=TXT:… / REGEXP:… . It first
// tries the content-script sender; on unavailability or a non-"not
// found" failure it falls back to searching !URLCURRENT.
func NewSearchHandler(sender ContentScriptSender) Handler {
	return func(ctx *Context) HandlerResult {
		source, ok := ctx.GetParam("SOURCE")
		if !ok {
			return Fail(ErrMissingParameter, "SEARCH requires SOURCE=TXT:… or SOURCE=REGEXP:…")
		}
		ignoreCase := strings.EqualFold(firstOr(ctx, "IGNORE_CASE", ""), "YES")

		extractTemplate, hasExtract := ctx.GetParam("EXTRACT")

		switch {
		case strings.HasPrefix(strings.ToUpper(source), "TXT:"):
			if hasExtract {
				return Fail(ErrInvalidParameter, "EXTRACT is only valid with SOURCE=REGEXP:…")
			}
			pattern := source[len("TXT:"):]
			return searchPlainText(ctx, sender, pattern, ignoreCase)
		case strings.HasPrefix(strings.ToUpper(source), "REGEXP:"):
			pattern := source[len("REGEXP:"):]
			return searchRegexp(ctx, sender, pattern, ignoreCase, extractTemplate, hasExtract)
		default:
			return Fail(ErrInvalidParameter, "SEARCH SOURCE must begin with TXT: or REGEXP:")
		}
	}
}

func firstOr(ctx *Context, key, def string) string {
	if v, ok := ctx.GetParam(key); ok {
		return v
	}
	return def
}

// wildcardToRegexp converts iMacros TXT wildcards (`*` matches
// anything across lines, spaces match any whitespace) into a regexp,
// escaping everything else.
func wildcardToRegexp(pattern string) string {
	var out strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			out.WriteString("(?s).*")
		case ' ':
			out.WriteString(`\s+`)
		default:
			out.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return out.String()
}

func searchPlainText(ctx *Context, sender ContentScriptSender, pattern string, ignoreCase bool) HandlerResult {
	expanded := ctx.Expand(pattern)
	reSrc := wildcardToRegexp(expanded)
	if ignoreCase {
		reSrc = "(?i)" + reSrc
	}
	re, err := regexp.Compile(reSrc)
	if err != nil {
		return Fail(ErrSyntaxError, "invalid search pattern: "+err.Error())
	}

	if sender != nil {
		resp := sender.SendSearch(context.Background(), "TXT", expanded, ignoreCase, "")
		if resp.Success {
			return OK()
		}
		if resp.ErrorCode == ErrElementNotFound {
			return Fail(ErrElementNotFound, resp.Error)
		}
	}

	current, _ := ctx.State().GetVariable("!URLCURRENT")
	if re.MatchString(stringify(current)) {
		return OK()
	}
	return Fail(ErrElementNotFound, "pattern not found")
}

func searchRegexp(ctx *Context, sender ContentScriptSender, pattern string, ignoreCase bool, extractTemplate string, hasExtract bool) HandlerResult {
	expanded := ctx.Expand(pattern)
	reSrc := expanded
	if ignoreCase {
		reSrc = "(?i)" + reSrc
	}
	re, err := regexp.Compile(reSrc)
	if err != nil {
		return Fail(ErrSyntaxError, "invalid regular expression: "+err.Error())
	}

	if sender != nil {
		resp := sender.SendSearch(context.Background(), "REGEXP", expanded, ignoreCase, extractTemplate)
		if resp.Success {
			applyRegexpExtract(ctx, resp, hasExtract, extractTemplate)
			return OK()
		}
		if resp.ErrorCode == ErrElementNotFound {
			return Fail(ErrElementNotFound, resp.Error)
		}
	}

	current, _ := ctx.State().GetVariable("!URLCURRENT")
	text := stringify(current)
	match := re.FindStringSubmatchIndex(text)
	if match == nil {
		return Fail(ErrElementNotFound, "pattern not found")
	}
	if hasExtract {
		expandedOut := string(re.ExpandString(nil, expandDollarGroups(extractTemplate), text, match))
		ctx.state.AddExtract(expandedOut)
	}
	return OK()
}

func applyRegexpExtract(ctx *Context, resp ContentScriptResponse, hasExtract bool, template string) {
	if !hasExtract || resp.ExtractedData == nil {
		return
	}
	for _, v := range resp.ExtractedData.Values {
		ctx.state.AddExtract(v)
	}
}

// expandDollarGroups rewrites $1, $2, … into Go regexp's ${1} form.
func expandDollarGroups(template string) string {
	var out strings.Builder
	for i := 0; i < len(template); i++ {
		if template[i] == '$' && i+1 < len(template) && template[i+1] >= '0' && template[i+1] <= '9' {
			j := i + 1
			for j < len(template) && template[j] >= '0' && template[j] <= '9' {
				j++
			}
			out.WriteString("${" + template[i+1:j] + "}")
			i = j - 1
			continue
		}
		out.WriteByte(template[i])
	}
	return out.String()
}
