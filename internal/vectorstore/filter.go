package vectorstore

import "fmt"

// Filter restricts Query and DeleteBy to records whose metadata matches
// every condition. All conditions are ANDed together.
type Filter struct {
	Conditions []Condition
}

// ConditionKind selects which predicate a Condition applies.
type ConditionKind int

const (
	// CondEq matches a field equal to Value.
	CondEq ConditionKind = iota
	// CondIn matches a field whose value is one of In.
	CondIn
	// CondContains matches a string field containing Substring.
	CondContains
	// CondNonEmpty matches an array field with at least one element.
	CondNonEmpty
	// CondRange matches a numeric field within [Gte, Lte] (either bound optional).
	CondRange
)

// Condition is one metadata predicate. Which fields are meaningful depends
// on Kind: Eq uses Value, In uses In, Contains uses Substring, NonEmpty uses
// none, Range uses Gte/Lte.
type Condition struct {
	Field     string
	Kind      ConditionKind
	Value     interface{}
	In        []interface{}
	Substring string
	Gte       *float64
	Lte       *float64
}

// Validate checks that every condition names a field and carries the
// predicate data its Kind requires.
func (f Filter) Validate() error {
	for _, c := range f.Conditions {
		if c.Field == "" {
			return fmt.Errorf("%w: condition missing field", ErrInvalidFilter)
		}
		switch c.Kind {
		case CondEq:
			if c.Value == nil {
				return fmt.Errorf("%w: field %q: equality condition has no value", ErrInvalidFilter, c.Field)
			}
		case CondIn:
			if len(c.In) == 0 {
				return fmt.Errorf("%w: field %q: membership condition has no values", ErrInvalidFilter, c.Field)
			}
		case CondContains:
			if c.Substring == "" {
				return fmt.Errorf("%w: field %q: contains condition has no substring", ErrInvalidFilter, c.Field)
			}
		case CondNonEmpty:
			// no extra data required
		case CondRange:
			if c.Gte == nil && c.Lte == nil {
				return fmt.Errorf("%w: field %q: range condition has neither bound", ErrInvalidFilter, c.Field)
			}
		default:
			return fmt.Errorf("%w: field %q: unknown condition kind", ErrInvalidFilter, c.Field)
		}
	}
	return nil
}

// FilterBuilder provides a fluent interface for building a Filter.
type FilterBuilder struct {
	conditions []Condition
}

// NewFilterBuilder creates an empty FilterBuilder.
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{}
}

// Eq adds an equality condition.
func (b *FilterBuilder) Eq(field string, value interface{}) *FilterBuilder {
	b.conditions = append(b.conditions, Condition{Field: field, Kind: CondEq, Value: value})
	return b
}

// In adds a set-membership condition.
func (b *FilterBuilder) In(field string, values ...interface{}) *FilterBuilder {
	b.conditions = append(b.conditions, Condition{Field: field, Kind: CondIn, In: values})
	return b
}

// Contains adds a substring-match condition on a string field.
func (b *FilterBuilder) Contains(field, substring string) *FilterBuilder {
	b.conditions = append(b.conditions, Condition{Field: field, Kind: CondContains, Substring: substring})
	return b
}

// NonEmpty adds a condition requiring an array field to have at least one element.
func (b *FilterBuilder) NonEmpty(field string) *FilterBuilder {
	b.conditions = append(b.conditions, Condition{Field: field, Kind: CondNonEmpty})
	return b
}

// Range adds a numeric range condition. Either bound may be nil to leave it
// open on that side.
func (b *FilterBuilder) Range(field string, gte, lte *float64) *FilterBuilder {
	b.conditions = append(b.conditions, Condition{Field: field, Kind: CondRange, Gte: gte, Lte: lte})
	return b
}

// Build returns the constructed Filter.
func (b *FilterBuilder) Build() Filter {
	return Filter{Conditions: b.conditions}
}
