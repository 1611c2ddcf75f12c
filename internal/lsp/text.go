package lsp

import "foldkit/internal/source"

// applyChanges edits doc in place so markers and fold regions follow each
// change. A change without a range replaces the whole text.
func applyChanges(doc *source.Document, changes []textDocumentContentChangeEvent) error {
	for _, change := range changes {
		if change.Range == nil {
			if err := doc.SetText(change.Text); err != nil {
				return err
			}
			continue
		}
		start := offsetOf(doc, change.Range.Start)
		end := offsetOf(doc, change.Range.End)
		if end < start {
			end = start
		}
		if err := doc.Replace(source.NewSpan(start, end), change.Text); err != nil {
			return err
		}
	}
	return nil
}
