package imacros

import (
	"strconv"
	"strings"
)

const bom = "\uFEFF"

// commandKinds maps the upper-cased first token of a line to its
// CommandKind. Anything absent from this table still parses, tagged
// KindUnknown.
var commandKinds = map[string]CommandKind{
	"URL": KindURL, "TAB": KindTab, "FRAME": KindFrame, "TAG": KindTag,
	"CLICK": KindClick, "EVENT": KindEvent, "SEARCH": KindSearch,
	"EXTRACT": KindExtract, "SET": KindSet, "ADD": KindAdd, "WAIT": KindWait,
	"PAUSE": KindPause, "PROMPT": KindPrompt, "ONDIALOG": KindOnDialog,
	"ONLOGIN": KindOnLogin, "STOPWATCH": KindStopwatch, "VERSION": KindVersion,
	"BACK": KindBack, "REFRESH": KindRefresh, "FILTER": KindFilter,
	"PROXY": KindProxy, "SAVEAS": KindSaveAs, "ONDOWNLOAD": KindOnDownload,
	"CMDLINE": KindCmdline, "DISCONNECT": KindDisconnect, "REDIAL": KindRedial,
	"IMAGECLICK": KindImageClick, "EVAL": KindEval,
}

var escapeReplacer = strings.NewReplacer("<SP>", " ", "<BR>", "\n", "<TAB>", "\t", "<ENTER>", "\n")

// Parser turns macro text into a ParsedMacro.
type Parser struct{}

// NewParser creates a parser. The grammar is stateless across lines
// except for per-line number tracking, so no constructor arguments
// are needed.
func NewParser() *Parser {
	return &Parser{}
}

// Parse strips a leading BOM, splits the text into lines, skips blanks
// and '-comments, and parses each remaining line into a ParsedCommand.
func (p *Parser) Parse(text string) *ParsedMacro {
	text = strings.TrimPrefix(text, bom)
	lines := splitLines(text)

	macro := &ParsedMacro{}
	for i, line := range lines {
		lineNum := i + 1
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "'") {
			continue
		}
		cmd, diags := p.parseLine(trimmed, lineNum)
		macro.Commands = append(macro.Commands, cmd)
		macro.Errors = append(macro.Errors, diags...)
		macro.Variables = append(macro.Variables, cmd.Variables...)
		if cmd.Type == KindVersion && macro.Version == "" {
			if build, ok := cmd.GetParam("BUILD"); ok {
				macro.Version = build
			}
		}
	}
	return macro
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func (p *Parser) parseLine(line string, lineNum int) (*ParsedCommand, []ParseDiagnostic) {
	keyword, rest := splitFirstToken(line)
	kind, known := commandKinds[strings.ToUpper(keyword)]
	if !known {
		kind = KindUnknown
	}

	params, vars := parseParameters(rest, lineNum)

	cmd := &ParsedCommand{
		Type:       kind,
		Parameters: params,
		Raw:        line,
		LineNumber: lineNum,
		Variables:  vars,
	}

	var diags []ParseDiagnostic
	if !known {
		diags = append(diags, ParseDiagnostic{Line: lineNum, Message: "unknown command: " + keyword})
	}
	diags = append(diags, validateCommand(cmd)...)
	return cmd, diags
}

func splitFirstToken(line string) (string, string) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

// parseParameters splits the parameter region into space-separated
// tokens, honoring double-quoted strings (with \" escapes) so spaces
// inside quotes are not treated as delimiters.
func parseParameters(rest string, lineNum int) ([]Parameter, []VariableReference) {
	var params []Parameter
	var vars []VariableReference

	tokens := tokenizeParameters(rest)
	for _, tok := range tokens {
		param, tokVars := parseOneParameter(tok, lineNum)
		params = append(params, param)
		vars = append(vars, tokVars...)
	}
	return params, vars
}

func tokenizeParameters(rest string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	i := 0
	for i < len(rest) {
		c := rest[i]
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteByte(c)
			i++
		case c == '\\' && inQuotes && i+1 < len(rest) && rest[i+1] == '"':
			cur.WriteString(`\"`)
			i += 2
		case (c == ' ' || c == '\t') && !inQuotes:
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// parseOneParameter handles KEY=VALUE, ATTR:KEY=VAL, and bare
// positional tokens.
func parseOneParameter(tok string, lineNum int) (Parameter, []VariableReference) {
	eq := findParamEquals(tok)
	if eq < 0 {
		raw := unquote(tok)
		return Parameter{RawValue: raw, Value: escapeReplacer.Replace(raw)}, collectVariableRefs(raw, lineNum)
	}

	key := strings.ToUpper(tok[:eq])
	rawValue := unquote(tok[eq+1:])
	value := escapeReplacer.Replace(rawValue)
	return Parameter{Key: key, Value: value, RawValue: rawValue}, collectVariableRefs(rawValue, lineNum)
}

// findParamEquals locates the '=' that separates KEY from VALUE,
// honoring the ATTR:KEY=VAL form where a colon precedes it.
func findParamEquals(tok string) int {
	inQuotes := false
	for i := 0; i < len(tok); i++ {
		switch tok[i] {
		case '"':
			inQuotes = !inQuotes
		case '=':
			if !inQuotes {
				return i
			}
		}
	}
	return -1
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		inner := s[1 : len(s)-1]
		return strings.ReplaceAll(inner, `\"`, `"`)
	}
	return s
}

func collectVariableRefs(text string, lineNum int) []VariableReference {
	var refs []VariableReference
	i := 0
	for i < len(text) {
		if strings.HasPrefix(text[i:], "{{") {
			end := strings.Index(text[i+2:], "}}")
			if end >= 0 {
				name := text[i+2 : i+2+end]
				refs = append(refs, VariableReference{Name: name, Line: lineNum})
				i = i + 2 + end + 2
				continue
			}
		}
		i++
	}
	return refs
}

// validateCommand produces non-fatal diagnostics for commands missing
// their required parameters. Execution may still dispatch them.
func validateCommand(cmd *ParsedCommand) []ParseDiagnostic {
	var diags []ParseDiagnostic
	add := func(msg string) {
		diags = append(diags, ParseDiagnostic{Line: cmd.LineNumber, Message: msg})
	}

	switch cmd.Type {
	case KindURL:
		if !cmd.HasParam("GOTO") && !hasPositionalFlag(cmd, "CURRENT") {
			add("URL requires GOTO or the CURRENT flag")
		}
	case KindTab:
		count := 0
		for _, k := range []string{"T", "OPEN", "NEW", "CLOSE", "CLOSEALLOTHERS"} {
			if cmd.HasParam(k) || hasPositionalFlag(cmd, k) {
				count++
			}
		}
		if count != 1 {
			add("TAB requires exactly one of T, OPEN, NEW, CLOSE, CLOSEALLOTHERS")
		}
	case KindFrame:
		if !cmd.HasParam("F") && !cmd.HasParam("NAME") {
			add("FRAME requires F=<n> or NAME=<name>")
		} else if raw, ok := cmd.GetParam("F"); ok {
			if n, err := strconv.Atoi(raw); err != nil || n < 0 {
				add("FRAME F must be a non-negative integer")
			}
		}
	case KindTag:
		if !cmd.HasParam("XPATH") && !cmd.HasParam("CSS") && !cmd.HasParam("TYPE") {
			add("TAG requires one of XPATH, CSS, or TYPE")
		}
	case KindSet:
		if _, hasName := cmd.Positional(0); !hasName {
			if !hasAnyKey(cmd) {
				add("SET requires a name and a value")
			}
		} else if _, hasValue := cmd.Positional(1); !hasValue && !hasAnyKey(cmd) {
			add("SET requires a name and a value")
		}
	case KindWait:
		if !cmd.HasParam("SECONDS") {
			add("WAIT requires SECONDS")
		}
	}
	return diags
}

func hasPositionalFlag(cmd *ParsedCommand, flag string) bool {
	for _, p := range cmd.Parameters {
		if p.Key == "" && strings.EqualFold(p.RawValue, flag) {
			return true
		}
	}
	return false
}

func hasAnyKey(cmd *ParsedCommand) bool {
	for _, p := range cmd.Parameters {
		if p.Key != "" {
			return true
		}
	}
	return false
}
