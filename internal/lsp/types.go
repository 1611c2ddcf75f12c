package lsp

import "encoding/json"

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeRequestFailed  = -32803
)

type initializeParams struct {
	RootURI               string            `json:"rootUri,omitempty"`
	RootPath              string            `json:"rootPath,omitempty"`
	WorkspaceFolders      []workspaceFolder `json:"workspaceFolders,omitempty"`
	InitializationOptions json.RawMessage   `json:"initializationOptions,omitempty"`
}

type workspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type textDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

type textDocumentIdentifier struct {
	URI string `json:"uri"`
}

type versionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

type position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type lspRange struct {
	Start position `json:"start"`
	End   position `json:"end"`
}

type textDocumentContentChangeEvent struct {
	Range *lspRange `json:"range,omitempty"`
	Text  string    `json:"text"`
}

type didOpenTextDocumentParams struct {
	TextDocument textDocumentItem `json:"textDocument"`
}

type didChangeTextDocumentParams struct {
	TextDocument   versionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []textDocumentContentChangeEvent `json:"contentChanges"`
}

type didSaveTextDocumentParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Text         *string                `json:"text,omitempty"`
}

type didCloseTextDocumentParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

type textDocumentSyncOptions struct {
	OpenClose bool        `json:"openClose"`
	Change    int         `json:"change"`
	Save      saveOptions `json:"save,omitempty"`
}

type saveOptions struct {
	IncludeText bool `json:"includeText,omitempty"`
}

type serverCapabilities struct {
	TextDocumentSync     textDocumentSyncOptions `json:"textDocumentSync"`
	FoldingRangeProvider bool                    `json:"foldingRangeProvider,omitempty"`
}

type serverInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type initializeResult struct {
	Capabilities serverCapabilities `json:"capabilities"`
	ServerInfo   serverInfo         `json:"serverInfo"`
}

type foldingRangeParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

// Folding range kinds of the protocol.
const (
	foldingComment = "comment"
	foldingImports = "imports"
	foldingRegion  = "region"
)

type foldingRange struct {
	StartLine      int    `json:"startLine"`
	StartCharacter *int   `json:"startCharacter,omitempty"`
	EndLine        int    `json:"endLine"`
	EndCharacter   *int   `json:"endCharacter,omitempty"`
	Kind           string `json:"kind,omitempty"`
	CollapsedText  string `json:"collapsedText,omitempty"`
}

type regionsParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
}

// regionInfo is one entry of the foldkit/regions reply.
type regionInfo struct {
	Start       uint32   `json:"start"`
	End         uint32   `json:"end"`
	Range       lspRange `json:"range"`
	Expanded    bool     `json:"expanded"`
	Placeholder string   `json:"placeholder"`
	Group       string   `json:"group,omitempty"`
	Signature   string   `json:"signature,omitempty"`
	Injected    bool     `json:"injected,omitempty"`
}

type toggleParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Line         int                    `json:"line"`
}

type toggleResult struct {
	Expanded bool     `json:"expanded"`
	Range    lspRange `json:"range"`
	// Caret is set when collapsing moved the caret out of the region.
	Caret *position `json:"caret,omitempty"`
}

type didChangeConfigurationParams struct {
	Settings json.RawMessage `json:"settings"`
}

type lspSettings struct {
	Foldkit foldkitSettings `json:"foldkit"`
}

type foldkitSettings struct {
	Trace    *bool `json:"trace,omitempty"`
	Debounce *int  `json:"debounceMs,omitempty"`
}

type foldAllParams struct {
	TextDocument textDocumentIdentifier `json:"textDocument"`
	Collapse     bool                   `json:"collapse"`
}

type foldAllResult struct {
	Collapsed int       `json:"collapsed"`
	Caret     *position `json:"caret,omitempty"`
}
