package lsp

import (
	"encoding/json"
	"sort"

	"foldkit/internal/editor"
	"foldkit/internal/fold"
	"foldkit/internal/foldfmt"
	"foldkit/internal/lang/curly"
	"foldkit/internal/lang/doc"
	"foldkit/internal/tree"
)

func (s *Server) handleFoldingRange(msg *rpcMessage) error {
	var params foldingRangeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	var ranges []foldingRange
	if _, err := s.withView(params.TextDocument.URI, func(v *editor.View) error {
		ranges = buildFoldingRanges(v)
		return nil
	}); err != nil {
		s.logf("foldingRange: %v", err)
	}
	if ranges == nil {
		ranges = []foldingRange{}
	}
	return s.sendResponse(msg.ID, ranges)
}

func buildFoldingRanges(v *editor.View) []foldingRange {
	if v.Disposed() {
		return nil
	}
	d := v.Document()
	live := v.Model().Live()
	ranges := make([]foldingRange, 0, len(live))
	for _, r := range live {
		span := r.Span()
		start := positionOf(d, span.Start)
		end := positionOf(d, span.End)
		endLine := end.Line
		// регион, кончающийся в начале строки, эту строку не прячет
		if end.Character == 0 && endLine > start.Line {
			endLine--
		}
		if endLine < start.Line {
			continue
		}
		ranges = append(ranges, foldingRange{
			StartLine:     start.Line,
			EndLine:       endLine,
			Kind:          foldingKind(v, r),
			CollapsedText: r.Placeholder(),
		})
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		if ranges[i].StartLine != ranges[j].StartLine {
			return ranges[i].StartLine < ranges[j].StartLine
		}
		return ranges[i].EndLine > ranges[j].EndLine
	})
	return ranges
}

// foldingKind maps the element behind r to a protocol kind. Regions with
// no element, and code blocks, have none.
func foldingKind(v *editor.View, r *fold.Region) string {
	e, ok := v.Map().ElementOf(r)
	if !ok {
		return ""
	}
	return kindOf(e.Kind())
}

func kindOf(k tree.Kind) string {
	switch k {
	case curly.KindComment, curly.KindComments, curly.KindDocComment, doc.KindDoc, doc.KindSection:
		return foldingComment
	case curly.KindImports:
		return foldingImports
	case curly.KindRegion:
		return foldingRegion
	default:
		return ""
	}
}

func (s *Server) handleRegions(msg *rpcMessage) error {
	var params regionsParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	list := []regionInfo{}
	open, err := s.withView(params.TextDocument.URI, func(v *editor.View) error {
		for _, row := range foldfmt.Rows(v) {
			list = append(list, regionInfo{
				Start:       row.Span.Start,
				End:         row.Span.End,
				Range:       rangeOf(v.Document(), row.Span),
				Expanded:    row.Expanded,
				Placeholder: row.Placeholder,
				Group:       row.Group,
				Signature:   row.Signature,
				Injected:    row.Injected,
			})
		}
		return nil
	})
	if !open {
		return s.sendError(msg.ID, codeInvalidParams, "document not open")
	}
	if err != nil {
		return s.sendError(msg.ID, codeRequestFailed, err.Error())
	}
	return s.sendResponse(msg.ID, list)
}
