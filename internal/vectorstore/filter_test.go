package vectorstore

import (
	"errors"
	"testing"
)

func TestFilterBuilder_Eq(t *testing.T) {
	f := NewFilterBuilder().Eq("doc_id", "abc123").Build()
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Conditions) != 1 || f.Conditions[0].Value != "abc123" {
		t.Fatalf("unexpected conditions: %+v", f.Conditions)
	}
}

func TestFilterBuilder_In(t *testing.T) {
	f := NewFilterBuilder().In("section", "intro", "appendix").Build()
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Conditions[0].In) != 2 {
		t.Fatalf("expected 2 values, got %d", len(f.Conditions[0].In))
	}
}

func TestFilterBuilder_Contains(t *testing.T) {
	f := NewFilterBuilder().Contains("filename", "quarterly").Build()
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Conditions[0].Kind != CondContains || f.Conditions[0].Substring != "quarterly" {
		t.Fatalf("unexpected conditions: %+v", f.Conditions)
	}
}

func TestFilterBuilder_NonEmpty(t *testing.T) {
	f := NewFilterBuilder().NonEmpty("related_tables").Build()
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Conditions[0].Kind != CondNonEmpty {
		t.Fatalf("unexpected conditions: %+v", f.Conditions)
	}
}

func TestFilterBuilder_Range(t *testing.T) {
	gte, lte := 2.0, 10.0
	f := NewFilterBuilder().Range("page", &gte, &lte).Build()
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *f.Conditions[0].Gte != 2.0 || *f.Conditions[0].Lte != 10.0 {
		t.Fatalf("unexpected conditions: %+v", f.Conditions)
	}
}

func TestFilterBuilder_Range_OpenEnded(t *testing.T) {
	gte := 2.0
	f := NewFilterBuilder().Range("page", &gte, nil).Build()
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestFilter_Validate_MissingField(t *testing.T) {
	f := Filter{Conditions: []Condition{{Value: "x"}}}
	if err := f.Validate(); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestFilter_Validate_NoPredicate(t *testing.T) {
	f := Filter{Conditions: []Condition{{Field: "doc_id", Kind: CondEq}}}
	if err := f.Validate(); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestFilter_Validate_RangeNeedsABound(t *testing.T) {
	f := Filter{Conditions: []Condition{{Field: "page", Kind: CondRange}}}
	if err := f.Validate(); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestFilter_Validate_ContainsNeedsSubstring(t *testing.T) {
	f := Filter{Conditions: []Condition{{Field: "filename", Kind: CondContains}}}
	if err := f.Validate(); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}
