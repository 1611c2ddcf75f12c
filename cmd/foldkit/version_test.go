package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"foldkit/internal/version"
)

func TestRenderVersionJSON(t *testing.T) {
	old := version.GitCommit
	version.GitCommit = ""
	t.Cleanup(func() { version.GitCommit = old })

	var buf bytes.Buffer
	if err := renderVersionJSON(&buf, versionOptions{showHash: true}); err != nil {
		t.Fatal(err)
	}
	var got versionPayload
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Tool != "foldkit" || got.Version != version.Version || got.GitCommit != "unknown" || got.BuildDate != "" {
		t.Fatalf("payload %+v", got)
	}
}
