// Package value implements KGLite's tagged value union and its coercion,
// equality, and hashing rules (spec §4.1).
//
// A Value is a small, inline-friendly sum type: scalars (Bool, Int64,
// Float64, Date) live directly in the struct, while Text, List, NodeRef and
// EdgeRef hold a pointer-sized payload. This keeps variable-length-expansion
// frontier sets and bindings compact, per spec §9's "avoid boxed-object-per-
// value implementations" guidance.
package value

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Tag identifies which variant of the union a Value holds.
type Tag uint8

const (
	Null Tag = iota
	Bool
	Int64
	Float64
	Text
	Date
	List
	NodeRef
	EdgeRef
)

func (t Tag) String() string {
	switch t {
	case Null:
		return "Null"
	case Bool:
		return "Bool"
	case Int64:
		return "Int64"
	case Float64:
		return "Float64"
	case Text:
		return "Text"
	case Date:
		return "Date"
	case List:
		return "List"
	case NodeRef:
		return "NodeRef"
	case EdgeRef:
		return "EdgeRef"
	default:
		return "Unknown"
	}
}

// CivilDate is a timezone-free calendar date (spec §3: "Dates are civil
// dates (no timezone)").
type CivilDate struct {
	Year  int
	Month int // 1-12
	Day   int // 1-31
}

// Ordinal returns a value that orders CivilDates the same way calendar
// order does, without going through time.Time (no timezone math involved).
func (d CivilDate) Ordinal() int64 {
	return int64(d.Year)*10000 + int64(d.Month)*100 + int64(d.Day)
}

func (d CivilDate) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Value is a single KGLite scalar, list, or graph reference.
//
// Only the field matching Tag is meaningful; the others are zero. List,
// NodeRef and EdgeRef values are immutable once constructed — callers must
// not mutate a []Value passed to NewList after the call.
type Value struct {
	tag  Tag
	b    bool
	i    int64
	f    float64
	s    string
	d    CivilDate
	list []Value
}

// Null-ness, constructors -----------------------------------------------

// Nil is the Null value.
var Nil = Value{tag: Null}

func NewBool(b bool) Value       { return Value{tag: Bool, b: b} }
func NewInt(i int64) Value       { return Value{tag: Int64, i: i} }
func NewFloat(f float64) Value   { return Value{tag: Float64, f: f} }
func NewText(s string) Value     { return Value{tag: Text, s: s} }
func NewDate(d CivilDate) Value  { return Value{tag: Date, d: d} }
func NewList(vs []Value) Value   { return Value{tag: List, list: vs} }
func NewNodeRef(id int64) Value  { return Value{tag: NodeRef, i: id} }
func NewEdgeRef(id int64) Value  { return Value{tag: EdgeRef, i: id} }

func (v Value) Tag() Tag       { return v.tag }
func (v Value) IsNull() bool   { return v.tag == Null }
func (v Value) Bool() bool     { return v.b }
func (v Value) Int() int64     { return v.i }
func (v Value) Float() float64 { return v.f }
func (v Value) Text() string   { return v.s }
func (v Value) Date() CivilDate { return v.d }
func (v Value) List() []Value  { return v.list }
func (v Value) RefID() int64   { return v.i }

// IsNumeric reports whether the value is an Int64 or Float64.
func (v Value) IsNumeric() bool { return v.tag == Int64 || v.tag == Float64 }

// AsFloat returns the value as a float64, promoting Int64. Only valid when
// IsNumeric is true.
func (v Value) AsFloat() float64 {
	if v.tag == Int64 {
		return float64(v.i)
	}
	return v.f
}

// Coercion ---------------------------------------------------------------

// ToText is the single place implicit scalar→Text coercion happens (spec
// §9: "Centralize in one Value→Text function; every string builtin calls it
// once at entry"). Null propagates: a Null input returns Nil (whose Text()
// is ""), so callers must check IsNull before or after calling.
func ToText(v Value) Value {
	switch v.tag {
	case Null:
		return Nil
	case Text:
		return v
	case Bool:
		if v.b {
			return NewText("true")
		}
		return NewText("false")
	case Int64:
		return NewText(strconv.FormatInt(v.i, 10))
	case Float64:
		return NewText(formatFloatShortest(v.f))
	case Date:
		return NewText(v.d.String())
	case List:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			t := ToText(e)
			if t.IsNull() {
				parts[i] = "null"
			} else {
				parts[i] = t.s
			}
		}
		return NewText("[" + strings.Join(parts, ", ") + "]")
	default:
		return NewText(fmt.Sprintf("%v", v))
	}
}

// formatFloatShortest formats f with the shortest decimal representation
// that round-trips, per spec §4.1 ("Float -> shortest round-trip").
func formatFloatShortest(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ToInteger implements the explicit toInteger() constructor: Text -> Int64
// is only ever permitted here, never implicitly (spec §4.1).
func ToInteger(v Value) Value {
	switch v.tag {
	case Null:
		return Nil
	case Int64:
		return v
	case Float64:
		return NewInt(int64(v.f))
	case Bool:
		if v.b {
			return NewInt(1)
		}
		return NewInt(0)
	case Text:
		s := strings.TrimSpace(v.s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return NewInt(i)
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return NewInt(int64(f))
		}
		return Nil
	default:
		return Nil
	}
}

// ToFloat implements the explicit toFloat() constructor.
func ToFloat(v Value) Value {
	switch v.tag {
	case Null:
		return Nil
	case Float64:
		return v
	case Int64:
		return NewFloat(float64(v.i))
	case Bool:
		if v.b {
			return NewFloat(1)
		}
		return NewFloat(0)
	case Text:
		s := strings.TrimSpace(v.s)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return NewFloat(f)
		}
		return Nil
	default:
		return Nil
	}
}

// Equality and ordering ---------------------------------------------------

// Equal implements spec §4.1's equality rules. Two Nulls are never equal
// (boolean-expression-context equality; use IsNull for IS NULL semantics).
func Equal(a, b Value) bool {
	if a.tag == Null || b.tag == Null {
		return false
	}
	if a.IsNumeric() && b.IsNumeric() {
		af, bf := a.AsFloat(), b.AsFloat()
		if math.IsNaN(af) || math.IsNaN(bf) {
			return false
		}
		return af == bf
	}
	if a.tag != b.tag {
		return false
	}
	switch a.tag {
	case Bool:
		return a.b == b.b
	case Text:
		return a.s == b.s
	case Date:
		return a.d == b.d
	case NodeRef, EdgeRef:
		return a.i == b.i
	case List:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Compare orders two non-Null values of compatible kinds. It returns -1, 0,
// or 1. Numeric values compare across Int64/Float64; Text compares by code
// point; Date compares by ordinal date. Incomparable kinds return 0 (WHERE
// comparisons between such kinds never match).
func Compare(a, b Value) int {
	switch {
	case a.IsNumeric() && b.IsNumeric():
		af, bf := a.AsFloat(), b.AsFloat()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	case a.tag == Text && b.tag == Text:
		return strings.Compare(a.s, b.s)
	case a.tag == Date && b.tag == Date:
		switch {
		case a.d.Ordinal() < b.d.Ordinal():
			return -1
		case a.d.Ordinal() > b.d.Ordinal():
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

// Truthy implements WHERE/Filter semantics: Null is false (spec §4.5:
// "Filter(expr) — drops bindings for which expr does not evaluate to true
// (Null is false)").
func Truthy(v Value) bool {
	return v.tag == Bool && v.b
}

// Hashing -------------------------------------------------------------

// Hash returns a structural hash of v for use as a dedup-set key (spec
// §4.5: "count(DISTINCT e) uses structural hashing of Values"). Hash does
// not by itself provide Value identity — callers doing DISTINCT-style
// dedup must confirm Equal on collision, which is how NaN correctly stays
// distinct from itself (NaN values hash identically to each other but
// Equal(NaN, NaN) is false, so a NaN never collapses into an earlier NaN
// seen in the same set).
func (v Value) Hash() uint64 {
	h := xxhash.New()
	var tagByte [1]byte
	tagByte[0] = byte(v.tag)
	if v.tag == Float64 && v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
		// An integral Float64 hashes exactly like the equal Int64.
		tagByte[0] = byte(Int64)
	}
	h.Write(tagByte[:])

	switch v.tag {
	case Null:
		// tag byte alone
	case Bool:
		if v.b {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case Int64:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v.i))
		h.Write(buf[:])
	case Float64:
		// Numeric equality spans Int64/Float64, so an Int64 and an
		// equal-valued Float64 must hash the same: hash the float64 bit
		// pattern of whichever representation, keyed by value not tag,
		// when the value is integral.
		if v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], uint64(int64(v.f)))
			h.Write(buf[:])
		} else {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v.f))
			h.Write(buf[:])
		}
	case Text:
		h.Write([]byte(v.s))
	case Date:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v.d.Ordinal()))
		h.Write(buf[:])
	case NodeRef, EdgeRef:
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(v.i))
		h.Write(buf[:])
	case List:
		for _, e := range v.list {
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], e.Hash())
			h.Write(buf[:])
		}
	}
	return h.Sum64()
}

// Numeric-to-numeric hash agreement: an Int64 must hash the same as an
// equal-valued Float64. Hash enforces this itself: an integral Float64
// writes the Int64 tag byte and the Int64 payload encoding.
func init() {
	// no-op: documents the invariant enforced inline in Hash for Int64 and
	// Float64 above (Int64's branch uses the same little-endian int64
	// encoding as Float64's integral-value branch).
}

// Set is a structural-equality dedup set of Values, used by the
// DISTINCT-mode variable-length expansion visited set and by count(DISTINCT
// x) (spec §4.5, §4.6, §9).
type Set struct {
	buckets map[uint64][]Value
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{buckets: make(map[uint64][]Value)}
}

// Add inserts v if not already present (by Hash+Equal) and reports whether
// the set grew.
func (s *Set) Add(v Value) bool {
	h := v.Hash()
	for _, existing := range s.buckets[h] {
		if Equal(existing, v) {
			return false
		}
	}
	s.buckets[h] = append(s.buckets[h], v)
	return true
}

// Contains reports whether v is already in the set.
func (s *Set) Contains(v Value) bool {
	h := v.Hash()
	for _, existing := range s.buckets[h] {
		if Equal(existing, v) {
			return true
		}
	}
	return false
}

// Len returns the number of distinct values currently held.
func (s *Set) Len() int {
	n := 0
	for _, b := range s.buckets {
		n += len(b)
	}
	return n
}

// Keys returns the set's members, sorted by Hash. The relative order of
// members with equal hashes is not defined.
func (s *Set) Keys() []Value {
	var all []Value
	for _, b := range s.buckets {
		all = append(all, b...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Hash() < all[j].Hash() })
	return all
}
