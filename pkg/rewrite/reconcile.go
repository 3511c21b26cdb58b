package rewrite

import (
	"context"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/compute"

	"github.com/ajitpratap0/colreplace/pkg/errors"
)

// Reconcile casts rewritten text chunks back to original. It takes ownership
// of chunks.
//
// On success the text chunks are released and the cast chunks returned with
// original as their type. If any value in any chunk fails to parse, nothing
// is cast: the text chunks come back unchanged with their text type, together
// with an ErrorTypeCoercion error describing the first failure. That error is
// informational; the text result is valid output.
func Reconcile(ctx context.Context, original arrow.DataType, chunks []arrow.Array) ([]arrow.Array, arrow.DataType, error) {
	if isText(original) {
		return chunks, original, nil
	}

	cast := make([]arrow.Array, 0, len(chunks))
	for _, chunk := range chunks {
		out, err := compute.CastArray(ctx, chunk, compute.SafeCastOptions(original))
		if err != nil {
			releaseAll(cast)
			return chunks, textType(original), errors.Wrap(err, errors.ErrorTypeCoercion,
				"rewritten values do not parse as "+original.String())
		}
		cast = append(cast, out)
	}

	releaseAll(chunks)
	return cast, original, nil
}

// reconcileDictionaries casts the values of rewritten dictionary chunks back to
// original. Besides every entry parsing, the cast entries must stay distinct:
// "01" and "1" both parse as the integer 1, which would break the dictionary.
func reconcileDictionaries(ctx context.Context, original *arrow.DictionaryType, chunks []arrow.Array) ([]arrow.Array, arrow.DataType, error) {
	if len(chunks) == 0 {
		return chunks, original, nil
	}
	textDictType := chunks[0].DataType()
	if isText(original.ValueType) {
		return chunks, textDictType, nil
	}

	castValues := make([]arrow.Array, 0, len(chunks))
	for _, chunk := range chunks {
		dict := chunk.(*array.Dictionary)
		out, err := compute.CastArray(ctx, dict.Dictionary(), compute.SafeCastOptions(original.ValueType))
		if err == nil && !distinct(out) {
			out.Release()
			err = errors.New(errors.ErrorTypeCoercion, "rewritten categories collide once cast to "+original.ValueType.String())
		}
		if err != nil {
			releaseAll(castValues)
			return chunks, textDictType, errors.Wrap(err, errors.ErrorTypeCoercion,
				"rewritten categories do not parse as "+original.ValueType.String())
		}
		castValues = append(castValues, out)
	}

	out := make([]arrow.Array, len(chunks))
	for i, chunk := range chunks {
		dict := chunk.(*array.Dictionary)
		out[i] = array.NewDictionaryArray(original, dict.Indices(), castValues[i])
	}
	releaseAll(castValues)
	releaseAll(chunks)
	return out, original, nil
}

func distinct(arr arrow.Array) bool {
	seen := make(map[string]struct{}, arr.Len())
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			continue
		}
		v := arr.ValueStr(i)
		if _, ok := seen[v]; ok {
			return false
		}
		seen[v] = struct{}{}
	}
	return true
}

func releaseAll(arrs []arrow.Array) {
	for _, a := range arrs {
		a.Release()
	}
}
