// Package testutil provides Arrow fixtures and helpers for colreplace tests
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// Strings builds a utf8 array. A nil value becomes a null.
func Strings(mem memory.Allocator, values ...interface{}) arrow.Array {
	bldr := array.NewStringBuilder(mem)
	defer bldr.Release()
	for _, v := range values {
		if v == nil {
			bldr.AppendNull()
			continue
		}
		bldr.Append(v.(string))
	}
	return bldr.NewArray()
}

// Int64s builds an int64 array. A nil value becomes a null.
func Int64s(mem memory.Allocator, values ...interface{}) arrow.Array {
	bldr := array.NewInt64Builder(mem)
	defer bldr.Release()
	for _, v := range values {
		if v == nil {
			bldr.AppendNull()
			continue
		}
		bldr.Append(int64(v.(int)))
	}
	return bldr.NewArray()
}

// Dictionary builds a dictionary<int32, utf8> array whose dictionary lists
// the distinct non-null values in order of first appearance.
func Dictionary(mem memory.Allocator, values ...interface{}) *array.Dictionary {
	idx := array.NewInt32Builder(mem)
	defer idx.Release()

	seen := make(map[string]int32)
	var distinct []interface{}
	for _, v := range values {
		if v == nil {
			idx.AppendNull()
			continue
		}
		s := v.(string)
		code, ok := seen[s]
		if !ok {
			code = int32(len(distinct))
			seen[s] = code
			distinct = append(distinct, s)
		}
		idx.Append(code)
	}

	indices := idx.NewArray()
	defer indices.Release()
	dict := Strings(mem, distinct...)
	defer dict.Release()

	dt := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.BinaryTypes.String}
	return array.NewDictionaryArray(dt, indices, dict)
}

// NamedArray pairs a column name with its single chunk.
type NamedArray struct {
	Name  string
	Array arrow.Array
}

// Col is shorthand for a NamedArray.
func Col(name string, arr arrow.Array) NamedArray {
	return NamedArray{Name: name, Array: arr}
}

// Table assembles single-chunk columns into a table and releases the input
// arrays, so callers can build arrays inline.
func Table(cols ...NamedArray) arrow.Table {
	fields := make([]arrow.Field, len(cols))
	columns := make([]arrow.Column, len(cols))
	rows := int64(0)
	for i, c := range cols {
		fields[i] = arrow.Field{Name: c.Name, Type: c.Array.DataType(), Nullable: true}
		chunked := arrow.NewChunked(c.Array.DataType(), []arrow.Array{c.Array})
		columns[i] = *arrow.NewColumn(fields[i], chunked)
		chunked.Release()
		c.Array.Release()
		rows = int64(c.Array.Len())
	}

	tbl := array.NewTable(arrow.NewSchema(fields, nil), columns, rows)
	for i := range columns {
		columns[i].Release()
	}
	return tbl
}

// Values returns the logical values of a column across all chunks: nil for
// nulls, string for text (dictionary entries are resolved), int64 for int64
// and the ValueStr form of anything else.
func Values(col *arrow.Column) []interface{} {
	out := make([]interface{}, 0, col.Len())
	for _, chunk := range col.Data().Chunks() {
		for i := 0; i < chunk.Len(); i++ {
			out = append(out, valueAt(chunk, i))
		}
	}
	return out
}

func valueAt(arr arrow.Array, i int) interface{} {
	if arr.IsNull(i) {
		return nil
	}
	switch a := arr.(type) {
	case *array.String:
		return a.Value(i)
	case *array.LargeString:
		return a.Value(i)
	case *array.Int64:
		return a.Value(i)
	case *array.Dictionary:
		return valueAt(a.Dictionary(), a.GetValueIndex(i))
	default:
		return arr.ValueStr(i)
	}
}

// DictionaryEntries returns the dictionary of the chunk at idx as text.
func DictionaryEntries(col *arrow.Column, idx int) []string {
	dict, ok := col.Data().Chunk(idx).(*array.Dictionary)
	if !ok {
		panic(fmt.Sprintf("testutil: chunk %d of %q is %s, not a dictionary", idx, col.Name(), col.DataType()))
	}
	values := dict.Dictionary()
	out := make([]string, values.Len())
	for i := range out {
		out[i] = values.ValueStr(i)
	}
	return out
}

// NullMask reports which positions of col are null.
func NullMask(col *arrow.Column) []bool {
	vals := Values(col)
	out := make([]bool, len(vals))
	for i, v := range vals {
		out[i] = v == nil
	}
	return out
}
