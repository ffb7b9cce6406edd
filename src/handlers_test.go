package imacros_test

import (
	"context"
	"testing"

	imacros "github.com/chapelsoftware/iMacros-Remastered-sub001/src"
	"github.com/chapelsoftware/iMacros-Remastered-sub001/src/testdom"
)

func TestURLCurrentStoresURLAndTitle(t *testing.T) {
	bridge := testdom.NewBridge(testdom.Page{URL: "https://example.com/", Title: "Example"})
	bridge.Navigate(context.Background(), "https://example.com/")
	engine := newTestEngine(imacros.Bridges{Browser: bridge})

	result := engine.RunMacro(context.Background(), "URL CURRENT", 1)

	if !result.Success {
		t.Fatalf("expected success, got error %d: %s", result.ErrorCode, result.ErrorMessage)
	}
	if got := engine.Store().GetString("!URLCURRENT"); got != "https://example.com/" {
		t.Errorf("expected !URLCURRENT %q, got %q", "https://example.com/", got)
	}
	if got := engine.Store().GetString("!DOCUMENT_TITLE"); got != "Example" {
		t.Errorf("expected !DOCUMENT_TITLE %q, got %q", "Example", got)
	}
}

func TestURLWithoutSchemeGetsHTTPPrefix(t *testing.T) {
	bridge := testdom.NewBridge().AllowAnyURL()
	engine := newTestEngine(imacros.Bridges{Browser: bridge})

	result := engine.RunMacro(context.Background(), "URL GOTO=example.com/page", 1)

	if !result.Success {
		t.Fatalf("expected success, got error %d: %s", result.ErrorCode, result.ErrorMessage)
	}
	if got := engine.Store().GetString("!URLCURRENT"); got != "http://example.com/page" {
		t.Errorf("expected the scheme-less URL to gain http://, got %q", got)
	}
}

func TestURLInvalidTargetFails(t *testing.T) {
	bridge := testdom.NewBridge().AllowAnyURL()
	engine := newTestEngine(imacros.Bridges{Browser: bridge})

	result := engine.RunMacro(context.Background(), "URL GOTO=http://", 1)

	if result.Success {
		t.Fatalf("expected failure for an unparsable URL")
	}
	if result.ErrorCode != imacros.ErrInvalidParameter {
		t.Errorf("expected errorCode %d, got %d", imacros.ErrInvalidParameter, result.ErrorCode)
	}
	if result.ErrorLine != 1 {
		t.Errorf("expected errorLine 1, got %d", result.ErrorLine)
	}
}

// frameBridge records SelectFrame calls and fails every frame except 0.
type frameBridge struct {
	testdom.Bridge
	selectCalls []int
}

func (b *frameBridge) SelectFrame(ctx context.Context, frameIndex int, frameName string) imacros.BridgeResponse {
	b.selectCalls = append(b.selectCalls, frameIndex)
	if frameIndex != 0 || frameName != "" {
		return imacros.BridgeResponse{Success: false, ErrorCode: imacros.ErrFrameNotFound}
	}
	return imacros.BridgeResponse{Success: true}
}

func TestFrameSingleAttemptAndResetToMain(t *testing.T) {
	bridge := &frameBridge{}
	engine := newTestEngine(imacros.Bridges{Browser: bridge})

	result := engine.RunMacro(context.Background(), "FRAME F=2", 1)

	if result.Success {
		t.Fatalf("expected failure for a missing frame")
	}
	if result.ErrorCode != imacros.ErrFrameNotFound {
		t.Errorf("expected errorCode %d, got %d", imacros.ErrFrameNotFound, result.ErrorCode)
	}
	// One attempt (no !TIMEOUT_STEP) followed by the reset to frame 0.
	if len(bridge.selectCalls) != 2 || bridge.selectCalls[0] != 2 || bridge.selectCalls[1] != 0 {
		t.Errorf("expected calls [2 0], got %v", bridge.selectCalls)
	}
}

func TestFrameZeroSelectsMainDocument(t *testing.T) {
	bridge := &frameBridge{}
	engine := newTestEngine(imacros.Bridges{Browser: bridge})

	result := engine.RunMacro(context.Background(), "FRAME F=0", 1)

	if !result.Success {
		t.Fatalf("expected success, got error %d: %s", result.ErrorCode, result.ErrorMessage)
	}
}

func TestTabClosePositionalFlag(t *testing.T) {
	bridge := testdom.NewBridge().AllowAnyURL()
	engine := newTestEngine(imacros.Bridges{Browser: bridge})

	macro := "TAB OPEN\nTAB CLOSE"
	result := engine.RunMacro(context.Background(), macro, 1)

	if !result.Success {
		t.Fatalf("expected success, got error %d: %s", result.ErrorCode, result.ErrorMessage)
	}
}

func TestSearchRegexpExtractFromCurrentURL(t *testing.T) {
	engine := newTestEngine(imacros.Bridges{})
	engine.Store().SetPrivileged("!URLCURRENT", "https://example.com/items/42/detail")

	macro := `SEARCH SOURCE=REGEXP:items/(\d+) EXTRACT=$1`
	result := engine.RunMacro(context.Background(), macro, 1)

	if !result.Success {
		t.Fatalf("expected success, got error %d: %s", result.ErrorCode, result.ErrorMessage)
	}
	if len(result.ExtractData) != 1 || result.ExtractData[0] != "42" {
		t.Errorf("expected extractData == [\"42\"], got %v", result.ExtractData)
	}
}

func TestSearchTxtWildcardNotFound(t *testing.T) {
	engine := newTestEngine(imacros.Bridges{})
	engine.Store().SetPrivileged("!URLCURRENT", "https://example.com/")

	result := engine.RunMacro(context.Background(), "SEARCH SOURCE=TXT:missing*needle", 1)

	if result.Success {
		t.Fatalf("expected failure for an unmatched pattern")
	}
	if result.ErrorCode != imacros.ErrElementNotFound {
		t.Errorf("expected errorCode %d, got %d", imacros.ErrElementNotFound, result.ErrorCode)
	}
}

func TestSearchInvalidRegexpIsSyntaxError(t *testing.T) {
	engine := newTestEngine(imacros.Bridges{})

	result := engine.RunMacro(context.Background(), "SEARCH SOURCE=REGEXP:([unclosed", 1)

	if result.Success {
		t.Fatalf("expected failure for an invalid regular expression")
	}
	if result.ErrorCode != imacros.ErrSyntaxError {
		t.Errorf("expected errorCode %d, got %d", imacros.ErrSyntaxError, result.ErrorCode)
	}
}

func TestSetReservedNameFails(t *testing.T) {
	engine := newTestEngine(imacros.Bridges{})

	result := engine.RunMacro(context.Background(), "SET !LOOP 99", 1)

	if result.Success {
		t.Fatalf("expected SET on a read-only name to fail the macro")
	}
	if result.ErrorCode != imacros.ErrInvalidParameter {
		t.Errorf("expected errorCode %d, got %d", imacros.ErrInvalidParameter, result.ErrorCode)
	}
}

func TestAddAccumulatesNumeric(t *testing.T) {
	engine := newTestEngine(imacros.Bridges{})

	macro := "SET counter 10\nADD counter 5\nADD counter 2.5"
	result := engine.RunMacro(context.Background(), macro, 1)

	if !result.Success {
		t.Fatalf("expected success, got error %d: %s", result.ErrorCode, result.ErrorMessage)
	}
	if got := engine.Store().GetString("counter"); got != "17.5" {
		t.Errorf("expected counter %q, got %q", "17.5", got)
	}
}

func TestUnsupportedCommandStub(t *testing.T) {
	engine := newTestEngine(imacros.Bridges{})

	result := engine.RunMacro(context.Background(), "CMDLINE echo hi", 1)

	if result.Success {
		t.Fatalf("expected CMDLINE to be unsupported")
	}
	if result.ErrorCode != imacros.ErrUnsupportedCommand {
		t.Errorf("expected errorCode %d, got %d", imacros.ErrUnsupportedCommand, result.ErrorCode)
	}
}

func TestUnknownCommandDispatchesToNoOp(t *testing.T) {
	engine := newTestEngine(imacros.Bridges{})

	result := engine.RunMacro(context.Background(), "FROBNICATE X=1", 1)

	if !result.Success {
		t.Fatalf("expected the default no-op handler to succeed, got error %d", result.ErrorCode)
	}
}

func TestEvalHandlerThroughEngine(t *testing.T) {
	engine := newTestEngine(imacros.Bridges{})

	macro := "SET a 6\nEVAL \"{{a}}*7\""
	result := engine.RunMacro(context.Background(), macro, 1)

	if !result.Success {
		t.Fatalf("expected success, got error %d: %s", result.ErrorCode, result.ErrorMessage)
	}
}

func TestErrorLoopAdvancesToNextIteration(t *testing.T) {
	bridge := testdom.NewBridge(testdom.Page{URL: "https://example.com/", HTML: `<html><body><h1>ok</h1></body></html>`})
	bridge.Navigate(context.Background(), "https://example.com/")
	engine := newTestEngine(imacros.Bridges{ContentScript: bridge})

	// The failing TAG (no EXTRACT, so no #EANF# escape) abandons each
	// iteration before the second EXTRACT line runs.
	macro := "SET !ERRORLOOP YES\nTAG POS=1 TYPE=DIV ATTR=ID:missing\nEXTRACT never"
	result := engine.RunMacro(context.Background(), macro, 2)

	if !result.Success {
		t.Fatalf("expected success under !ERRORLOOP, got error %d: %s", result.ErrorCode, result.ErrorMessage)
	}
	if len(result.ExtractData) != 0 {
		t.Errorf("expected the post-failure command to be skipped, got extracts %v", result.ExtractData)
	}
}
