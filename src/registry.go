package imacros

// EngineVersion is reported through VERSION and !VERSION.
const EngineVersion = "12.0-remastered"

// Bridges bundles the collaborator interfaces an Engine wires into
// its handlers. Any field may be nil; handlers that need a missing
// collaborator fail with UNSUPPORTED_COMMAND or the documented default.
type Bridges struct {
	Browser       BrowserBridge
	ContentScript ContentScriptSender
	Dialog        DialogBridge
	Cmdline       CmdlineExecutor
	Network       NetworkManager
}

// RegisterDefaultHandlers wires every command kind in the closed
// enumeration to its handler: full handlers for the navigation, tab,
// frame, tag, and search/extract families, minimal handlers for the
// remaining named commands, and UNSUPPORTED_COMMAND stubs for the
// OS-level commands the engine does not carry.
func RegisterDefaultHandlers(e *Executor, bridges Bridges, evaluator EvalEvaluator) {
	e.RegisterHandler(KindURL, NewURLHandler(bridges.Browser))
	e.RegisterHandler(KindTab, NewTabHandler(bridges.Browser))
	e.RegisterHandler(KindFrame, NewFrameHandler(bridges.Browser))
	e.RegisterHandler(KindTag, NewTagHandler(bridges.ContentScript))
	e.RegisterHandler(KindExtract, NewExtractHandler())
	e.RegisterHandler(KindSearch, NewSearchHandler(bridges.ContentScript))
	e.RegisterHandler(KindClick, NewClickHandler(bridges.ContentScript))
	e.RegisterHandler(KindEvent, NewEventHandler(bridges.ContentScript))

	e.RegisterHandler(KindSet, NewSetHandler())
	e.RegisterHandler(KindAdd, NewAddHandler())
	e.RegisterHandler(KindWait, NewWaitHandler())
	e.RegisterHandler(KindPause, NewPauseHandler())
	e.RegisterHandler(KindStopwatch, NewStopwatchHandler())
	e.RegisterHandler(KindVersion, NewVersionHandler(EngineVersion))
	e.RegisterHandler(KindBack, NewBackHandler(bridges.Browser))
	e.RegisterHandler(KindRefresh, NewRefreshHandler(bridges.Browser))
	e.RegisterHandler(KindFilter, NewFilterHandler(bridges.Network))
	e.RegisterHandler(KindProxy, NewProxyHandler(bridges.Network))
	e.RegisterHandler(KindSaveAs, NewSaveAsHandler())
	e.RegisterHandler(KindOnDownload, NewOnDownloadHandler())
	e.RegisterHandler(KindOnDialog, NewOnDialogHandler(bridges.Dialog))
	e.RegisterHandler(KindOnLogin, NewOnLoginHandler())
	e.RegisterHandler(KindPrompt, NewPromptHandler(bridges.Dialog))
	e.RegisterHandler(KindEval, NewEvalHandler(evaluator))

	e.RegisterHandler(KindCmdline, unsupportedHandler("CMDLINE"))
	e.RegisterHandler(KindDisconnect, unsupportedHandler("DISCONNECT"))
	e.RegisterHandler(KindRedial, unsupportedHandler("REDIAL"))
	e.RegisterHandler(KindImageClick, unsupportedHandler("IMAGECLICK"))
}
