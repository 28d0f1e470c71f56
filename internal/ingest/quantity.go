package ingest

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// quantityKind tags which encoding a JSON leaf used.
type quantityKind int

const (
	quantityMissing quantityKind = iota
	quantityNumber
	quantityText
)

// Quantity is a provider leaf value. The provider encodes leaves either as
// a bare scalar or as an object {"raw": ..., "fmt": "..."}; both decode to
// the same Quantity.
type Quantity struct {
	kind quantityKind
	num  float64
	text string
	// fmt is the display string of an object leaf, kept as a text fallback.
	fmt string
}

// QuantityOf decodes a gjson result. Unrecognized shapes yield a missing
// Quantity whose accessors return zero values.
func QuantityOf(r gjson.Result) Quantity {
	switch r.Type {
	case gjson.Number:
		return Quantity{kind: quantityNumber, num: r.Float()}
	case gjson.String:
		return Quantity{kind: quantityText, text: r.String()}
	case gjson.JSON:
		if !r.IsObject() {
			return Quantity{}
		}
		raw := r.Get("raw")
		display := r.Get("fmt")
		q := QuantityOf(raw)
		if display.Type == gjson.String {
			q.fmt = display.String()
		}
		return q
	default:
		return Quantity{}
	}
}

// Missing reports whether the leaf was absent or unrecognized.
func (q Quantity) Missing() bool {
	return q.kind == quantityMissing && q.fmt == ""
}

// Float returns the numeric value; numeric text is parsed, anything else is 0.
func (q Quantity) Float() float64 {
	switch q.kind {
	case quantityNumber:
		return q.num
	case quantityText:
		f, err := strconv.ParseFloat(strings.TrimSpace(q.text), 64)
		if err != nil || math.IsNaN(f) {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Int returns the numeric value truncated to int64.
func (q Quantity) Int() int64 {
	f := q.Float()
	if math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0
	}
	return int64(f)
}

// Text returns the text value, falling back to the display string.
func (q Quantity) Text() string {
	switch q.kind {
	case quantityText:
		if q.text != "" {
			return q.text
		}
	case quantityNumber:
		if q.fmt == "" {
			return strconv.FormatFloat(q.num, 'f', -1, 64)
		}
	}
	return q.fmt
}
