package rewrite

import (
	"fmt"
	"sort"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/ajitpratap0/colreplace/pkg/pattern"
)

// RewriteDictionary rewrites the distinct entries of a dictionary array and
// remaps its rows onto the resulting dictionary.
//
// The new dictionary is the sorted set of rewritten entries, so entries that
// rewrite to the same text merge into one category. Rows that are null, or
// that point at a null entry, stay null. The index type is preserved; the
// value type becomes text (see RewritePlain).
func RewriteDictionary(mem memory.Allocator, arr *array.Dictionary, p *pattern.Compiled) (*array.Dictionary, Stats) {
	dt := arr.DataType().(*arrow.DictionaryType)
	values := arr.Dictionary()
	stats := Stats{Representation: DictionaryEncoded, Rows: arr.Len()}

	// Rewrite each distinct entry exactly once.
	rewritten := make([]string, values.Len())
	distinct := make(map[string]struct{}, values.Len())
	for j := 0; j < values.Len(); j++ {
		if values.IsNull(j) {
			continue
		}
		v := textAt(values, j)
		out := p.Replace(v)
		stats.Values++
		if out != v {
			stats.Changed++
		}
		rewritten[j] = out
		distinct[out] = struct{}{}
	}

	newValues := make([]string, 0, len(distinct))
	for v := range distinct {
		newValues = append(newValues, v)
	}
	sort.Strings(newValues)
	stats.DictionarySize = len(newValues)

	position := make(map[string]int, len(newValues))
	for i, v := range newValues {
		position[v] = i
	}
	remap := make([]int, values.Len())
	for j := range remap {
		if values.IsNull(j) {
			remap[j] = -1
			continue
		}
		remap[j] = position[rewritten[j]]
	}

	valueType := textType(dt.ValueType)
	dictArr := buildStrings(mem, valueType, newValues)
	defer dictArr.Release()

	indices := remapIndices(mem, arr, dt.IndexType, remap)
	defer indices.Release()

	newType := &arrow.DictionaryType{IndexType: dt.IndexType, ValueType: valueType, Ordered: dt.Ordered}
	return array.NewDictionaryArray(newType, indices, dictArr), stats
}

// remapIndices translates every row of arr through remap. A remap entry of -1
// marks a null dictionary entry.
func remapIndices(mem memory.Allocator, arr *array.Dictionary, indexType arrow.DataType, remap []int) arrow.Array {
	bldr := array.NewBuilder(mem, indexType)
	defer bldr.Release()
	bldr.Reserve(arr.Len())

	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			bldr.AppendNull()
			continue
		}
		next := remap[arr.GetValueIndex(i)]
		if next < 0 {
			bldr.AppendNull()
			continue
		}
		appendIndex(bldr, next)
	}

	return bldr.NewArray()
}

func appendIndex(bldr array.Builder, v int) {
	switch b := bldr.(type) {
	case *array.Int8Builder:
		b.Append(int8(v))
	case *array.Int16Builder:
		b.Append(int16(v))
	case *array.Int32Builder:
		b.Append(int32(v))
	case *array.Int64Builder:
		b.Append(int64(v))
	case *array.Uint8Builder:
		b.Append(uint8(v))
	case *array.Uint16Builder:
		b.Append(uint16(v))
	case *array.Uint32Builder:
		b.Append(uint32(v))
	case *array.Uint64Builder:
		b.Append(uint64(v))
	default:
		panic(fmt.Sprintf("rewrite: unsupported dictionary index builder %T", bldr))
	}
}

func buildStrings(mem memory.Allocator, dt arrow.DataType, values []string) arrow.Array {
	bldr := newStringBuilder(mem, dt)
	defer bldr.Release()
	bldr.Reserve(len(values))
	for _, v := range values {
		bldr.Append(v)
	}
	return bldr.NewArray()
}
