package emit

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/roach88/hypetrace/internal/ir"
)

var (
	microsPerSecond = big.NewInt(1_000_000)
	nanosPerMicro   = big.NewInt(1000)
)

// AppendScalar appends the rendering of a leaf value. Strings are quoted
// as-is; Emitter handles normalization and opaque values.
func AppendScalar(dst []byte, v ir.Value) ([]byte, error) {
	switch val := v.(type) {
	case ir.Null:
		return append(dst, "null"...), nil
	case ir.Bool:
		return strconv.AppendBool(dst, bool(val)), nil
	case ir.Int:
		return strconv.AppendInt(dst, int64(val), 10), nil
	case ir.BigInt:
		return val.V.Append(dst, 10), nil
	case ir.Float:
		return AppendFloat(dst, float64(val)), nil
	case ir.String:
		return append(dst, ir.QuoteString(string(val))...), nil
	case ir.Timestamp:
		return AppendTimestamp(dst, val), nil
	default:
		return dst, fmt.Errorf("cannot render %s value", ir.TypeName(v))
	}
}

// AppendFloat appends f in shortest round-trip form. Integral values keep
// a ".0"; decimal exponents below -4 or from 16 up use exponent notation.
// Non-finite values are written NaN, Infinity and -Infinity.
func AppendFloat(dst []byte, f float64) []byte {
	switch {
	case math.IsNaN(f):
		return append(dst, "NaN"...)
	case math.IsInf(f, 1):
		return append(dst, "Infinity"...)
	case math.IsInf(f, -1):
		return append(dst, "-Infinity"...)
	}

	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.LastIndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return append(dst, sci...)
	}

	start := len(dst)
	dst = strconv.AppendFloat(dst, f, 'f', -1, 64)
	if bytes.IndexByte(dst[start:], '.') < 0 {
		dst = append(dst, ".0"...)
	}
	return dst
}

// AppendTimestamp appends ts as micros.fff where micros is
// sec*1e6 + floor(nsec/1000) and fff is nsec mod 1000. The arithmetic is
// exact for every int64 pair.
func AppendTimestamp(dst []byte, ts ir.Timestamp) []byte {
	micros := new(big.Int).Mul(big.NewInt(ts.Sec), microsPerSecond)
	q, m := new(big.Int).DivMod(big.NewInt(ts.Nsec), nanosPerMicro, new(big.Int))
	micros.Add(micros, q)

	dst = micros.Append(dst, 10)
	frac := m.Int64()
	return append(dst, '.', byte('0'+frac/100), byte('0'+frac/10%10), byte('0'+frac%10))
}
