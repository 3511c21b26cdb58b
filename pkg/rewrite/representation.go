// Package rewrite applies a compiled pattern to Arrow columns.
//
// Columns come in two storage representations. Plain columns are rewritten
// value by value; dictionary-encoded columns are rewritten once per distinct
// dictionary entry and their row indices remapped, so the cost follows the
// dictionary's cardinality rather than the row count. Either way nulls are
// never matched and keep their positions, and a non-text column is cast back
// to its original type when every rewritten value still parses as that type.
package rewrite

import (
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// Representation is the storage form of a column.
type Representation int

const (
	// Plain columns store each value directly.
	Plain Representation = iota
	// DictionaryEncoded columns store distinct values once plus per-row indices.
	DictionaryEncoded
)

func (r Representation) String() string {
	switch r {
	case DictionaryEncoded:
		return "dictionary"
	default:
		return "plain"
	}
}

// RepresentationOf classifies a column by its Arrow type.
func RepresentationOf(dt arrow.DataType) Representation {
	if dt.ID() == arrow.DICTIONARY {
		return DictionaryEncoded
	}
	return Plain
}

// isText reports whether dt already holds text, so no cast back is needed.
func isText(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.STRING, arrow.LARGE_STRING:
		return true
	default:
		return false
	}
}

// textType is the type a rewritten column of original type dt is built as.
func textType(dt arrow.DataType) arrow.DataType {
	if dt.ID() == arrow.LARGE_STRING {
		return arrow.BinaryTypes.LargeString
	}
	return arrow.BinaryTypes.String
}

// textAt coerces the non-null value at i to text.
func textAt(arr arrow.Array, i int) string {
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Binary:
		return string(a.Value(i))
	case *array.LargeBinary:
		return string(a.Value(i))
	default:
		return arr.ValueStr(i)
	}
}

// stringBuilder is satisfied by both StringBuilder and LargeStringBuilder.
type stringBuilder interface {
	array.Builder
	Append(v string)
}

func newStringBuilder(mem memory.Allocator, dt arrow.DataType) stringBuilder {
	if dt.ID() == arrow.LARGE_STRING {
		return array.NewLargeStringBuilder(mem)
	}
	return array.NewStringBuilder(mem)
}
