package dialect

import (
	"fmt"

	"github.com/Limetric/schemaferry/internal/model"
)

// castKind classifies how a value moves between two column types during
// table recreation.
type castKind int

const (
	castSame           castKind = iota // copy as is
	castConvert                        // plain CAST to the new type
	castTruncate                       // character or binary narrowing
	castNumberRange                    // numeric narrowing, out-of-range -> NULL
	castTextToNumber                   // parse, unparseable -> NULL
	castNumberToText                   // format
	castTemporalToText                 // format
	castTextToTemporal                 // parse, unparseable -> NULL
	castLobToText                      // read the leading characters
	castTextToLob                      // wrap
	castBinaryToLob                    // wrap
	castLobToBinary                    // read the leading bytes
	castNull                           // no conversion
)

// lossless reports whether every non-null source value survives the cast,
// so a NOT NULL column can keep its constraint through recreation.
func (k castKind) lossless() bool {
	switch k {
	case castTextToNumber, castTextToTemporal, castNumberRange, castNull:
		return false
	}
	return true
}

func isText(t model.Type) bool {
	return t == model.TypeChar || t == model.TypeVarchar || t == model.TypeNChar || t == model.TypeNVarchar
}

func classifyCast(from, to *model.Column) castKind {
	switch {
	case from.Type == to.Type:
		switch {
		case from.Type == model.TypeOther:
			if from.NativeType == to.NativeType {
				return castSame
			}
			return castNull
		case isText(from.Type) || from.Type == model.TypeBinary:
			if narrower(from.Size, to.Size) {
				return castTruncate
			}
			return castSame
		case from.Type == model.TypeDecimal:
			if narrower(from.Size, to.Size) || to.Scale < from.Scale {
				return castNumberRange
			}
			if to.Scale != from.Scale {
				return castConvert
			}
			return castSame
		}
		return castSame
	case isText(from.Type) && isText(to.Type):
		if narrower(from.Size, to.Size) {
			return castTruncate
		}
		return castConvert
	case (isText(from.Type) || from.Type == model.TypeClob) && to.Type == model.TypeDecimal:
		return castTextToNumber
	case from.Type == model.TypeDecimal && isText(to.Type):
		return castNumberToText
	case from.Type == model.TypeTimestamp && isText(to.Type):
		return castTemporalToText
	case isText(from.Type) && to.Type == model.TypeTimestamp:
		return castTextToTemporal
	case from.Type == model.TypeClob && isText(to.Type):
		return castLobToText
	case isText(from.Type) && to.Type == model.TypeClob:
		return castTextToLob
	case from.Type == model.TypeBinary && to.Type == model.TypeBlob:
		return castBinaryToLob
	case from.Type == model.TypeBlob && to.Type == model.TypeBinary:
		return castLobToBinary
	}
	return castNull
}

// numberPattern matches the text forms both backends parse as numbers.
const numberPattern = `^[-+]?[0-9]*\.?[0-9]+([eE][-+]?[0-9]+)?$`

// timestampPattern matches ISO dates with an optional time part.
const timestampPattern = `^[0-9]{4}-[0-9]{2}-[0-9]{2}( [0-9]{2}:[0-9]{2}(:[0-9]{2})?)?$`

const timestampFormat = "'YYYY-MM-DD HH24:MI:SS'"

// numberRange keeps values that fit the new precision and scale.
func numberRange(d Dialect, expr string, to *model.Column) string {
	target := fmt.Sprintf("CAST(%s AS %s)", expr, d.ColumnType(to))
	if to.Size == 0 {
		return target
	}
	return fmt.Sprintf("CASE WHEN ABS(%s) < 1E%d THEN %s ELSE NULL END", expr, to.Size-to.Scale, target)
}
