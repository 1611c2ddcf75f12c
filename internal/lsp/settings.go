package lsp

import (
	"encoding/json"
	"time"
)

func (s *Server) handleDidChangeConfiguration(msg *rpcMessage) error {
	if len(msg.Params) == 0 {
		return nil
	}
	var params didChangeConfigurationParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return nil
	}
	s.applySettings(params.Settings)
	return nil
}

func (s *Server) applySettings(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var settings lspSettings
	if err := json.Unmarshal(raw, &settings); err != nil {
		s.logf("ignoring settings: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.Foldkit.Trace != nil {
		s.traceLSP = *settings.Foldkit.Trace
	}
	if d := settings.Foldkit.Debounce; d != nil && *d > 0 {
		s.debounce = time.Duration(*d) * time.Millisecond
	}
}
