package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"foldkit/internal/config"
	"foldkit/internal/driver"
	"foldkit/internal/editor"
)

const program = "import a\nimport b\n\nfn main() {\n\tif x {\n\t\tone()\n\t} else {\n\t\ttwo()\n\t}\n}\n"

type testServer struct {
	t   *testing.T
	srv *Server
	out *bytes.Buffer
	id  int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	loop := editor.NewLoop()
	sess, err := driver.NewSession(driver.Options{Config: config.Default(), Loop: loop, Memory: true})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	var out bytes.Buffer
	srv := NewServer(bytes.NewReader(nil), &out, ServerOptions{Session: sess, Loop: loop, Debounce: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		loop.Close()
	})
	srv.start(ctx)
	return &testServer{t: t, srv: srv, out: &out}
}

func (ts *testServer) notify(method string, params any) {
	ts.t.Helper()
	payload, _ := json.Marshal(params)
	if err := ts.srv.handleMessage(&rpcMessage{JSONRPC: "2.0", Method: method, Params: payload}); err != nil {
		ts.t.Fatalf("%s: %v", method, err)
	}
}

// call sends a request and decodes the reply into result. It returns the
// error object of the reply, if any.
func (ts *testServer) call(method string, params, result any) *rpcError {
	ts.t.Helper()
	ts.id++
	id, _ := json.Marshal(ts.id)
	payload, _ := json.Marshal(params)
	ts.out.Reset()
	if err := ts.srv.handleMessage(&rpcMessage{JSONRPC: "2.0", ID: id, Method: method, Params: payload}); err != nil {
		ts.t.Fatalf("%s: %v", method, err)
	}
	raw, err := readMessage(bufio.NewReader(bytes.NewReader(ts.out.Bytes())))
	if err != nil {
		ts.t.Fatalf("%s: no reply: %v", method, err)
	}
	var reply rpcMessage
	if err := json.Unmarshal(raw, &reply); err != nil {
		ts.t.Fatalf("%s: %v", method, err)
	}
	if reply.Error != nil {
		return reply.Error
	}
	if result != nil {
		if err := json.Unmarshal(reply.Result, result); err != nil {
			ts.t.Fatalf("%s result: %v", method, err)
		}
	}
	return nil
}

func (ts *testServer) open(uri, text string) {
	ts.t.Helper()
	ts.notify("textDocument/didOpen", didOpenTextDocumentParams{
		TextDocument: textDocumentItem{URI: uri, LanguageID: "curly", Version: 1, Text: text},
	})
}

func (ts *testServer) regions(uri string) []regionInfo {
	ts.t.Helper()
	var list []regionInfo
	if e := ts.call("foldkit/regions", regionsParams{TextDocument: textDocumentIdentifier{URI: uri}}, &list); e != nil {
		ts.t.Fatalf("regions: %+v", e)
	}
	return list
}

func regionOnLine(list []regionInfo, line int) *regionInfo {
	var best *regionInfo
	for i := range list {
		r := &list[i]
		if r.Range.Start.Line != line {
			continue
		}
		if best == nil || r.End-r.Start < best.End-best.Start {
			best = r
		}
	}
	return best
}

func testURI(t *testing.T) string {
	return pathToURI(filepath.Join(t.TempDir(), "main.cy"))
}

func TestInitializeAdvertisesFolding(t *testing.T) {
	ts := newTestServer(t)
	var res initializeResult
	if e := ts.call("initialize", initializeParams{RootPath: t.TempDir()}, &res); e != nil {
		t.Fatalf("initialize: %+v", e)
	}
	if !res.Capabilities.FoldingRangeProvider || res.Capabilities.TextDocumentSync.Change != 2 {
		t.Fatalf("capabilities %+v", res.Capabilities)
	}
	if res.ServerInfo.Name != "foldkit" {
		t.Fatalf("server info %+v", res.ServerInfo)
	}
}

func TestFoldingRanges(t *testing.T) {
	ts := newTestServer(t)
	uri := testURI(t)
	ts.open(uri, program)

	var ranges []foldingRange
	if e := ts.call("textDocument/foldingRange", foldingRangeParams{TextDocument: textDocumentIdentifier{URI: uri}}, &ranges); e != nil {
		t.Fatalf("foldingRange: %+v", e)
	}
	byLine := make(map[int]foldingRange)
	for _, r := range ranges {
		if _, seen := byLine[r.StartLine]; !seen {
			byLine[r.StartLine] = r
		}
	}
	imports, ok := byLine[0]
	if !ok || imports.Kind != foldingImports || imports.EndLine != 1 {
		t.Fatalf("imports range %+v in %+v", imports, ranges)
	}
	fn, ok := byLine[3]
	if !ok || fn.Kind != "" || fn.EndLine != 9 || fn.CollapsedText == "" {
		t.Fatalf("fn range %+v", fn)
	}

	// closed documents have no ranges
	var none []foldingRange
	other := pathToURI(filepath.Join(t.TempDir(), "other.cy"))
	if e := ts.call("textDocument/foldingRange", foldingRangeParams{TextDocument: textDocumentIdentifier{URI: other}}, &none); e != nil || len(none) != 0 {
		t.Fatalf("unknown document: %+v %v", none, e)
	}
}

func TestEditToggleAndReopen(t *testing.T) {
	ts := newTestServer(t)
	uri := testURI(t)
	ts.open(uri, program)

	ts.notify("textDocument/didChange", didChangeTextDocumentParams{
		TextDocument: versionedTextDocumentIdentifier{URI: uri, Version: 2},
		ContentChanges: []textDocumentContentChangeEvent{{
			Range: &lspRange{Start: position{Line: 0, Character: 0}, End: position{Line: 0, Character: 0}},
			Text:  "// c\n\n",
		}},
	})
	if fn := regionOnLine(ts.regions(uri), 5); fn == nil || !fn.Expanded {
		t.Fatalf("fn did not move with the edit: %+v", ts.regions(uri))
	}

	var res toggleResult
	if e := ts.call("foldkit/toggle", toggleParams{TextDocument: textDocumentIdentifier{URI: uri}, Line: 5}, &res); e != nil {
		t.Fatalf("toggle: %+v", e)
	}
	if res.Expanded || res.Range.Start.Line != 5 {
		t.Fatalf("toggle result %+v", res)
	}
	if e := ts.call("foldkit/toggle", toggleParams{TextDocument: textDocumentIdentifier{URI: uri}, Line: 1}, nil); e == nil || e.Code != codeRequestFailed {
		t.Fatalf("toggle on an empty line: %+v", e)
	}

	text := "// c\n\n" + program
	ts.notify("textDocument/didClose", didCloseTextDocumentParams{TextDocument: textDocumentIdentifier{URI: uri}})
	ts.open(uri, text)
	if fn := regionOnLine(ts.regions(uri), 5); fn == nil || fn.Expanded {
		t.Fatalf("collapsed state not restored on reopen: %+v", fn)
	}
}

func TestFoldAll(t *testing.T) {
	ts := newTestServer(t)
	uri := testURI(t)
	ts.open(uri, program)

	var res foldAllResult
	params := foldAllParams{TextDocument: textDocumentIdentifier{URI: uri}, Collapse: true}
	if e := ts.call("foldkit/foldAll", params, &res); e != nil {
		t.Fatalf("foldAll: %+v", e)
	}
	list := ts.regions(uri)
	if res.Collapsed != len(list) {
		t.Fatalf("collapsed %d of %d", res.Collapsed, len(list))
	}
	for _, r := range list {
		if r.Expanded {
			t.Fatalf("%+v still expanded", r)
		}
	}
	params.Collapse = false
	if e := ts.call("foldkit/foldAll", params, &res); e != nil || res.Collapsed != 0 {
		t.Fatalf("expand all: %+v %+v", res, e)
	}
}

func TestUnknownMethodAndExit(t *testing.T) {
	ts := newTestServer(t)
	if e := ts.call("textDocument/hover", map[string]any{}, nil); e == nil || e.Code != codeMethodNotFound {
		t.Fatalf("hover: %+v", e)
	}
	err := ts.srv.handleMessage(&rpcMessage{Method: "exit"})
	if !errors.Is(err, ErrExitWithoutShutdown) {
		t.Fatalf("exit before shutdown: %v", err)
	}
	if e := ts.call("shutdown", nil, nil); e != nil {
		t.Fatalf("shutdown: %+v", e)
	}
	if err := ts.srv.handleMessage(&rpcMessage{Method: "exit"}); !errors.Is(err, ErrExit) {
		t.Fatalf("exit: %v", err)
	}
}

func TestRunStopsAtEOF(t *testing.T) {
	var in bytes.Buffer
	for _, m := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"initialized","params":{}}`,
	} {
		if err := writeMessage(&in, []byte(m)); err != nil {
			t.Fatal(err)
		}
	}
	loop := editor.NewLoop()
	sess, err := driver.NewSession(driver.Options{Config: config.Default(), Loop: loop, Memory: true})
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	srv := NewServer(&in, &out, ServerOptions{Session: sess, Loop: loop})
	if err := srv.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	raw, err := readMessage(bufio.NewReader(&out))
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("reply: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"foldingRangeProvider":true`)) {
		t.Fatalf("initialize reply %s", raw)
	}
}
