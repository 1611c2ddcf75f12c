package snapshot

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"foldkit/internal/source"
)

const rootTag = "folding"

type xmlState struct {
	XMLName xml.Name  `xml:"folding"`
	Path    string    `xml:"path,attr,omitempty"`
	Items   []xmlItem `xml:",any"`
}

// xmlItem is either <element> or <marker>; XMLName tells which.
type xmlItem struct {
	XMLName     xml.Name
	Signature   string `xml:"signature,attr"`
	Expanded    bool   `xml:"expanded,attr,omitempty"`
	Date        string `xml:"date,attr,omitempty"`
	Placeholder string `xml:"placeholder,attr,omitempty"`
}

// Encode writes s as XML. Undated marker entries are left out and at most
// limit entries are written; limit <= 0 means no bound.
func Encode(w io.Writer, s *Snapshot, limit int) (int, error) {
	st := xmlState{Path: s.Path}
	for _, e := range s.Entries {
		if limit > 0 && len(st.Items) >= limit {
			break
		}
		switch e := e.(type) {
		case BySignature:
			st.Items = append(st.Items, xmlItem{
				XMLName:   xml.Name{Local: "element"},
				Signature: e.Signature,
				Expanded:  e.Expanded,
			})
		case ByMarker:
			if !e.Dated {
				continue
			}
			st.Items = append(st.Items, xmlItem{
				XMLName:     xml.Name{Local: "marker"},
				Signature:   e.Span.String(),
				Expanded:    e.Expanded,
				Date:        strconv.FormatInt(e.Date, 10),
				Placeholder: e.Placeholder,
			})
		}
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(st); err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return 0, err
	}
	return len(st.Items), nil
}

// Decode reads a snapshot written by Encode. Entries past limit are
// dropped. A malformed entry is skipped; a malformed document is an error.
func Decode(r io.Reader, limit int) (*Snapshot, error) {
	var st xmlState
	if err := xml.NewDecoder(r).Decode(&st); err != nil {
		if _, ok := err.(xml.UnmarshalError); ok {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if st.XMLName.Local != rootTag {
		return nil, fmt.Errorf("%w: root <%s>", ErrUnsupportedFormat, st.XMLName.Local)
	}
	s := &Snapshot{Path: st.Path}
	for _, it := range st.Items {
		if limit > 0 && len(s.Entries) >= limit {
			break
		}
		switch it.XMLName.Local {
		case "element":
			if it.Signature == "" {
				continue
			}
			s.Entries = append(s.Entries, BySignature{Signature: it.Signature, Expanded: it.Expanded})
		case "marker":
			span, err := source.ParseSpan(it.Signature)
			if err != nil {
				continue
			}
			date, err := strconv.ParseInt(it.Date, 10, 64)
			if err != nil {
				continue
			}
			s.Entries = append(s.Entries, ByMarker{
				Span:        span,
				Expanded:    it.Expanded,
				Placeholder: it.Placeholder,
				Date:        date,
				Dated:       true,
			})
		}
	}
	return s, nil
}
