// Package lsp serves folding over stdio JSON-RPC: documents sync through
// didOpen/didChange/didSave/didClose, textDocument/foldingRange returns the
// reconciled regions. foldkit/regions, foldkit/toggle and foldkit/foldAll
// read and change their state.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"foldkit/internal/driver"
	"foldkit/internal/editor"
	"foldkit/internal/reconcile"
	"foldkit/internal/source"
	"foldkit/internal/version"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// ServerOptions configures LSP server behavior.
type ServerOptions struct {
	// Session must have been created with Loop.
	Session  *driver.Session
	Loop     *editor.Loop
	Debounce time.Duration
	Trace    bool
}

// Server handles stdio JSON-RPC for foldkit.
type Server struct {
	in      *bufio.Reader
	out     *bufio.Writer
	sendMu  sync.Mutex
	session *driver.Session
	loop    *editor.Loop

	mu                sync.Mutex
	docs              map[string]*docState
	workspaceRoot     string
	shutdownRequested bool
	debounce          time.Duration
	traceLSP          bool
	baseCtx           context.Context
}

// docState is an open document. view and stamp are touched on the loop only.
type docState struct {
	uri     string
	version int
	view    *editor.View
	timer   *time.Timer
	// stamp is the document stamp of the last reconcile.
	stamp uint64
}

// NewServer constructs a new LSP server.
func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Server{
		in:       bufio.NewReader(in),
		out:      bufio.NewWriter(out),
		session:  opts.Session,
		loop:     opts.Loop,
		docs:     make(map[string]*docState),
		debounce: debounce,
		traceLSP: opts.Trace,
		baseCtx:  context.Background(),
	}
}

// start runs the UI loop for the lifetime of ctx.
func (s *Server) start(ctx context.Context) {
	s.baseCtx = ctx
	go func() {
		if err := s.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logf("loop stopped: %v", err)
		}
	}()
}

// Run serves LSP requests until exit or EOF.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.start(ctx)
	defer s.loop.Close()
	for {
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.logf("failed to parse message: %v", err)
			continue
		}
		if msg.Method == "" {
			continue
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		s.mu.Lock()
		requested := s.shutdownRequested
		s.mu.Unlock()
		if requested {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "workspace/didChangeConfiguration":
		return s.handleDidChangeConfiguration(msg)
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didSave":
		return s.handleDidSave(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/foldingRange":
		return s.handleFoldingRange(msg)
	case "foldkit/regions":
		return s.handleRegions(msg)
	case "foldkit/toggle":
		return s.handleToggle(msg)
	case "foldkit/foldAll":
		return s.handleFoldAll(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	root := ""
	if params.RootURI != "" {
		root = uriToPath(params.RootURI)
	}
	if root == "" && params.RootPath != "" {
		root = params.RootPath
	}
	if root == "" && len(params.WorkspaceFolders) > 0 {
		root = uriToPath(params.WorkspaceFolders[0].URI)
	}
	if root != "" {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	s.mu.Lock()
	s.workspaceRoot = root
	s.mu.Unlock()
	s.applySettings(params.InitializationOptions)

	return s.sendResponse(msg.ID, initializeResult{
		Capabilities: serverCapabilities{
			TextDocumentSync: textDocumentSyncOptions{
				OpenClose: true,
				Change:    2,
				Save:      saveOptions{IncludeText: true},
			},
			FoldingRangeProvider: true,
		},
		ServerInfo: serverInfo{Name: "foldkit", Version: version.Version},
	})
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	for _, st := range s.docs {
		if st.timer != nil {
			st.timer.Stop()
		}
	}
	s.docs = make(map[string]*docState)
	s.mu.Unlock()
	var err error
	if doErr := s.onLoop(func() { err = s.session.Shutdown() }); doErr != nil {
		err = doErr
	}
	if err != nil {
		s.logf("shutdown: %v", err)
	}
	return s.sendResponse(msg.ID, nil)
}

// onLoop runs fn on the UI loop and waits for it.
func (s *Server) onLoop(fn func()) error {
	return s.loop.Do(s.baseCtx, fn)
}

func (s *Server) doc(uri string) *docState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[canonicalURI(uri)]
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params didOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := canonicalURI(params.TextDocument.URI)
	if uri == "" {
		return nil
	}
	if old := s.doc(uri); old != nil {
		// повторный didOpen без didClose
		s.closeDoc(old)
	}
	doc := source.NewDocument(docPath(uri), []byte(params.TextDocument.Text))
	markSavedIfOnDisk(doc)

	st := &docState{uri: uri, version: params.TextDocument.Version}
	var (
		stats  driver.OpenStats
		err    error
		opened *editor.View
	)
	if doErr := s.onLoop(func() {
		opened, stats, err = s.session.Open(s.baseCtx, doc)
		if err == nil {
			st.view = opened
			st.stamp = doc.ModStamp()
		}
	}); doErr != nil {
		return doErr
	}
	if err != nil {
		s.logf("didOpen %s: %v", uri, err)
		return nil
	}
	s.mu.Lock()
	s.docs[uri] = st
	trace := s.traceLSP
	s.mu.Unlock()
	if trace {
		s.logf("didOpen: uri=%s version=%d zombies=%d restored=%d", uri, st.version, stats.Zombies, stats.Restore.Restored)
	}
	return nil
}

// markSavedIfOnDisk dates doc with its file's time when the buffer matches
// the file, so light regions recorded on close can be replayed.
func markSavedIfOnDisk(doc *source.Document) {
	// #nosec G304 -- path comes from the client's document URI
	content, err := os.ReadFile(doc.Path())
	if err != nil || string(content) != doc.Text() {
		return
	}
	if info, err := os.Stat(doc.Path()); err == nil {
		doc.SetDiskTimestamp(info.ModTime().UnixNano())
	}
}

func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params didChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	st := s.doc(params.TextDocument.URI)
	if st == nil {
		return nil
	}
	var err error
	if doErr := s.onLoop(func() { err = applyChanges(st.view.Document(), params.ContentChanges) }); doErr != nil {
		return doErr
	}
	if err != nil {
		s.logf("didChange %s: %v", st.uri, err)
		return nil
	}
	s.mu.Lock()
	st.version = params.TextDocument.Version
	trace := s.traceLSP
	s.mu.Unlock()
	if trace {
		s.logf("didChange: uri=%s version=%d", st.uri, params.TextDocument.Version)
	}
	s.scheduleUpdate(st)
	return nil
}

func (s *Server) handleDidSave(msg *rpcMessage) error {
	var params didSaveTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	st := s.doc(params.TextDocument.URI)
	if st == nil {
		return nil
	}
	var err error
	if doErr := s.onLoop(func() {
		doc := st.view.Document()
		if params.Text != nil {
			if err = doc.SetText(*params.Text); err != nil {
				return
			}
		}
		ts := time.Now().UnixNano()
		if info, statErr := os.Stat(doc.Path()); statErr == nil {
			ts = info.ModTime().UnixNano()
		}
		doc.SetDiskTimestamp(ts)
	}); doErr != nil {
		return doErr
	}
	if err != nil {
		s.logf("didSave %s: %v", st.uri, err)
		return nil
	}
	s.scheduleUpdate(st)
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params didCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	if st := s.doc(params.TextDocument.URI); st != nil {
		s.closeDoc(st)
	}
	return nil
}

func (s *Server) closeDoc(st *docState) {
	s.mu.Lock()
	if st.timer != nil {
		st.timer.Stop()
	}
	delete(s.docs, st.uri)
	s.mu.Unlock()
	var err error
	if doErr := s.onLoop(func() { _, err = s.session.Close(st.view) }); doErr != nil {
		err = doErr
	}
	if err != nil {
		s.logf("didClose %s: %v", st.uri, err)
	}
}

// scheduleUpdate reconciles st in the background after the edits settle.
func (s *Server) scheduleUpdate(st *docState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(s.debounce, func() {
		v := st.view
		s.session.Schedule(s.baseCtx, v, func(_ reconcile.Stats, err error) {
			if err != nil {
				s.logf("update %s: %v", st.uri, err)
				return
			}
			// done runs on the loop; a stale pass is followed by the next timer
			st.stamp = v.Document().ModStamp()
		})
	})
}

// refresh reconciles st when its document moved past the last pass. Loop only.
func (s *Server) refresh(st *docState) error {
	doc := st.view.Document()
	if st.stamp == doc.ModStamp() || st.view.Disposed() {
		return nil
	}
	stamp := doc.ModStamp()
	if _, err := s.session.Refresh(s.baseCtx, st.view); err != nil {
		return err
	}
	st.stamp = stamp
	return nil
}

// withView runs fn on the loop with the refreshed view of uri. It reports
// false when the document is not open.
func (s *Server) withView(uri string, fn func(v *editor.View) error) (bool, error) {
	st := s.doc(uri)
	if st == nil {
		return false, nil
	}
	var err error
	if doErr := s.onLoop(func() {
		if err = s.refresh(st); err == nil {
			err = fn(st.view)
		}
	}); doErr != nil {
		return true, doErr
	}
	return true, err
}

func (s *Server) handleToggle(msg *rpcMessage) error {
	var params toggleParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	var res toggleResult
	open, err := s.withView(params.TextDocument.URI, func(v *editor.View) error {
		caret := v.Caret()
		r, err := s.session.Toggle(v, params.Line)
		if err != nil {
			return err
		}
		res.Expanded = r.Expanded()
		res.Range = rangeOf(v.Document(), r.Span())
		if moved := v.Caret(); moved != caret {
			p := positionOf(v.Document(), moved)
			res.Caret = &p
		}
		return nil
	})
	switch {
	case !open:
		return s.sendError(msg.ID, codeInvalidParams, "document not open")
	case errors.Is(err, driver.ErrNoRegion):
		return s.sendError(msg.ID, codeRequestFailed, err.Error())
	case err != nil:
		s.logf("toggle: %v", err)
		return s.sendError(msg.ID, codeRequestFailed, err.Error())
	}
	return s.sendResponse(msg.ID, res)
}

func (s *Server) handleFoldAll(msg *rpcMessage) error {
	var params foldAllParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	var res foldAllResult
	open, err := s.withView(params.TextDocument.URI, func(v *editor.View) error {
		caret := v.Caret()
		n, err := s.session.FoldAll(v, params.Collapse)
		if err != nil {
			return err
		}
		res.Collapsed = n
		if moved := v.Caret(); moved != caret {
			p := positionOf(v.Document(), moved)
			res.Caret = &p
		}
		return nil
	})
	switch {
	case !open:
		return s.sendError(msg.ID, codeInvalidParams, "document not open")
	case err != nil:
		s.logf("foldAll: %v", err)
		return s.sendError(msg.ID, codeRequestFailed, err.Error())
	}
	return s.sendResponse(msg.ID, res)
}

func (s *Server) logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "lsp: "+format+"\n", args...)
}
