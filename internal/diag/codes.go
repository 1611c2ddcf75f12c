package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// descriptor build
	FoldDescriptorOutOfBounds Code = 1001
	FoldDescriptorEmpty       Code = 1002
	FoldAmbiguousOverlap      Code = 1003
	FoldAnalyzerNotReady      Code = 1004
	FoldAnalyzerFailed        Code = 1005

	// signatures
	FoldSignatureMismatch  Code = 2001
	FoldSignatureCollision Code = 2002

	// reconcile
	FoldGroupInconsistent        Code = 3001
	FoldElementInvalidAtCommit   Code = 3002
	FoldRangeOutOfBoundsAtCommit Code = 3003
	FoldRegionRejected           Code = 3004
	FoldStalePass                Code = 3005

	// persistence
	FoldSnapshotDecode Code = 4001
	FoldSessionCache   Code = 4002
)

var codeDescription = map[Code]string{
	UnknownCode:                  "unknown defect",
	FoldDescriptorOutOfBounds:    "descriptor range ends past the document",
	FoldDescriptorEmpty:          "descriptor range is empty",
	FoldAmbiguousOverlap:         "descriptors of different roots overlap partially",
	FoldAnalyzerNotReady:         "analyzer data not ready",
	FoldAnalyzerFailed:           "analyzer returned an error",
	FoldSignatureMismatch:        "signature does not restore to its element",
	FoldSignatureCollision:       "two elements share one signature",
	FoldGroupInconsistent:        "descriptors of a group are incomplete",
	FoldElementInvalidAtCommit:   "descriptor element became invalid before commit",
	FoldRangeOutOfBoundsAtCommit: "descriptor range is outside the document at commit",
	FoldRegionRejected:           "fold model rejected a region",
	FoldStalePass:                "document changed since the pass was computed",
	FoldSnapshotDecode:           "stored folding state could not be decoded",
	FoldSessionCache:             "session cache unavailable",
}

// Severity returns the severity a defect is reported with by default.
func (c Code) Severity() Severity {
	switch c {
	case FoldRegionRejected, FoldStalePass, FoldAnalyzerNotReady:
		return SevInfo
	case FoldSnapshotDecode, FoldSessionCache, FoldAnalyzerFailed:
		return SevError
	default:
		return SevWarning
	}
}

func (c Code) ID() string {
	if ic := int(c); ic >= 1000 && ic < 10000 {
		return fmt.Sprintf("FLD%04d", ic)
	}
	return "FLD0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
