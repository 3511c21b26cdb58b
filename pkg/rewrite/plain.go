package rewrite

import (
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/ajitpratap0/colreplace/pkg/pattern"
)

// Stats counts the work done on one column.
type Stats struct {
	Representation Representation
	// Values is the number of non-null values the matcher ran on. For
	// dictionary columns these are dictionary entries, not rows.
	Values int
	// Changed is how many of those values the rewrite altered.
	Changed int
	// Rows is the column length.
	Rows int
	// DictionarySize is the total size of the rewritten dictionaries.
	DictionarySize int
	// Reconciled is true when the column kept a non-text original type.
	Reconciled bool
}

func (s *Stats) add(o Stats) {
	s.Values += o.Values
	s.Changed += o.Changed
	s.Rows += o.Rows
	s.DictionarySize += o.DictionarySize
}

// RewritePlain rewrites every non-null value of arr and returns a new text
// array of the same length with the same null positions. String and
// LargeString inputs keep their type; anything else comes back as String and
// is left for Reconcile.
func RewritePlain(mem memory.Allocator, arr arrow.Array, p *pattern.Compiled) (arrow.Array, Stats) {
	n := arr.Len()
	stats := Stats{Representation: Plain, Rows: n}

	bldr := newStringBuilder(mem, textType(arr.DataType()))
	defer bldr.Release()
	bldr.Reserve(n)

	for i := 0; i < n; i++ {
		if arr.IsNull(i) {
			bldr.AppendNull()
			continue
		}
		v := textAt(arr, i)
		out := p.Replace(v)
		stats.Values++
		if out != v {
			stats.Changed++
		}
		bldr.Append(out)
	}

	return bldr.NewArray(), stats
}
