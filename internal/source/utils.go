package source

import (
	"path/filepath"
	"slices"
	"sort"

	"fortio.org/safecast"
)

// normalizeCRLF заменяет все \r\n на \n, не трогая одиночные \r.
// Возвращает новый слайс и флаг: были ли замены (true, если хотя бы одна).
func normalizeCRLF(content []byte) ([]byte, bool) {
	if !slices.Contains(content, '\r') {
		return content, false
	}

	out := make([]byte, 0, len(content))
	changed := false

	i := 0
	for i < len(content) {
		if content[i] == '\r' && i+1 < len(content) && content[i+1] == '\n' {
			out = append(out, '\n')
			i += 2
			changed = true
		} else {
			out = append(out, content[i])
			i++
		}
	}
	return out, changed
}

func removeBOM(content []byte) ([]byte, bool) {
	if len(content) < 3 {
		return content, false
	}

	if content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		return content[3:], true
	}

	return content, false
}

func buildLineIndex(content []byte) []uint32 {
	out := make([]uint32, 0, len(content)/32+1)
	for i, b := range content {
		if b == '\n' {
			out = append(out, mustUint32(i))
		}
	}
	return out
}

// lineOf returns the 0-based line containing off.
func lineOf(lineIdx []uint32, off uint32) int {
	return sort.Search(len(lineIdx), func(i int) bool { return lineIdx[i] >= off })
}

func lineStart(lineIdx []uint32, line int) uint32 {
	if line <= 0 || len(lineIdx) == 0 {
		return 0
	}
	if line > len(lineIdx) {
		line = len(lineIdx)
	}
	return lineIdx[line-1] + 1
}

func toLineCol(lineIdx []uint32, off uint32) LineCol {
	line := lineOf(lineIdx, off)
	start := lineStart(lineIdx, line)
	return LineCol{Line: mustUint32(line + 1), Col: off - start + 1}
}

func mustUint32(n int) uint32 {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(err)
	}
	return v
}

func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	// единый вид в кроссплатформенных дифах
	return filepath.ToSlash(filepath.Clean(p))
}
