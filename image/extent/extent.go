// Package extent holds the byte-range type shared by the striping helper,
// the parent-extent resolver and the object-store client.
package extent

// Extent is a (offset, length) byte range, always in the coordinate space
// documented by the function that produced it (object-local or
// image/parent-global — callers must track which).
type Extent struct {
	Offset int64
	Length int64
}

// TotalBytes sums the length of all extents.
func TotalBytes(extents []Extent) int64 {
	var n int64
	for _, e := range extents {
		n += e.Length
	}
	return n
}

// Prune trims extents so that no byte past limit is included. Extents are
// assumed already ordered by Offset ascending, as produced by the striping
// helper. Returns the pruned slice and the number of bytes it covers.
func Prune(extents []Extent, limit int64) ([]Extent, int64) {
	if limit <= 0 {
		return nil, 0
	}

	var (
		pruned []Extent
		total  int64
	)
	for _, e := range extents {
		if e.Offset >= limit {
			break
		}
		length := e.Length
		if e.Offset+length > limit {
			length = limit - e.Offset
		}
		if length <= 0 {
			continue
		}
		pruned = append(pruned, Extent{Offset: e.Offset, Length: length})
		total += length
	}
	return pruned, total
}
