package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// EntityKind splits the closed type set into catalog types (reference data,
// deduplicated across the whole corpus) and instance types (one node per
// real-world occurrence, never merged with prior documents).
type EntityKind int

const (
	KindInstance EntityKind = iota
	KindCatalog
)

// EntityType is one of the closed set of types the extractor may emit.
// The string value matches the key used in the extractor's JSON output.
type EntityType string

const (
	TypePatient    EntityType = "patients"
	TypeEncounter  EntityType = "encounters"
	TypeClinician  EntityType = "clinicians"
	TypeTestResult EntityType = "test_results"
	TypeSymptom    EntityType = "symptoms"
	TypeDisease    EntityType = "diseases"
	TypeTest       EntityType = "tests"
	TypeMedication EntityType = "medications"
	TypeProcedure  EntityType = "procedures"
	TypeGuideline  EntityType = "guidelines"
)

type typeSpec struct {
	Label    string
	Kind     EntityKind
	Required []string
	// Defining lists the attributes whose tuple identifies an instance
	// entity within one document. Catalog types are compared by
	// (code, system) or name instead.
	Defining []string
}

var typeSpecs = map[EntityType]typeSpec{
	TypePatient:    {Label: "Patient", Kind: KindInstance, Defining: []string{"name", "dob"}},
	TypeEncounter:  {Label: "Encounter", Kind: KindInstance, Defining: []string{"date", "dept"}},
	TypeClinician:  {Label: "Clinician", Kind: KindInstance, Defining: []string{"name", "specialty"}},
	TypeTestResult: {Label: "TestResult", Kind: KindInstance, Defining: []string{"time", "value"}},
	TypeSymptom:    {Label: "Symptom", Kind: KindCatalog, Required: []string{"name"}},
	TypeDisease:    {Label: "Disease", Kind: KindCatalog, Required: []string{"code", "system"}},
	TypeTest:       {Label: "Test", Kind: KindCatalog, Required: []string{"name"}},
	TypeMedication: {Label: "Medication", Kind: KindCatalog, Required: []string{"code", "system"}},
	TypeProcedure:  {Label: "Procedure", Kind: KindCatalog, Required: []string{"code", "system"}},
	TypeGuideline:  {Label: "Guideline", Kind: KindCatalog},
}

// AllEntityTypes returns the closed type set in a stable order.
func AllEntityTypes() []EntityType {
	return []EntityType{
		TypePatient, TypeEncounter, TypeClinician, TypeTestResult,
		TypeSymptom, TypeDisease, TypeTest, TypeMedication,
		TypeProcedure, TypeGuideline,
	}
}

func (t EntityType) Valid() bool {
	_, ok := typeSpecs[t]
	return ok
}

func (t EntityType) Label() string {
	return typeSpecs[t].Label
}

func (t EntityType) Kind() EntityKind {
	return typeSpecs[t].Kind
}

func (t EntityType) IsCatalog() bool {
	return typeSpecs[t].Kind == KindCatalog
}

func (t EntityType) DefiningAttributes() []string {
	return typeSpecs[t].Defining
}

// Entity is one extracted entity. LocalRef is the extractor's chunk-local
// reference string ("symptoms[0]"); GlobalRef is assigned by the merger and
// indexes into the document-global entity list.
type Entity struct {
	Type       EntityType     `json:"type"`
	Attributes map[string]any `json:"attributes"`
	LocalRef   string         `json:"local_ref,omitempty"`
	GlobalRef  int            `json:"global_ref"`
}

// StringAttr returns the named attribute as a string, or "" when absent or
// not a scalar.
func (e *Entity) StringAttr(key string) string {
	v, ok := e.Attributes[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// Normalize validates an attribute map against the type's schema at the
// extraction boundary. It returns false when a required attribute is
// missing, in which case the entity is dropped before it enters the
// pipeline. Encounter dates default to today when absent or unparseable.
func Normalize(t EntityType, attrs map[string]any) (map[string]any, bool) {
	if !t.Valid() || attrs == nil {
		return nil, false
	}
	for _, req := range typeSpecs[t].Required {
		v, ok := attrs[req]
		if !ok || v == nil || fmt.Sprint(v) == "" {
			return nil, false
		}
	}
	if t == TypeEncounter {
		d, _ := attrs["date"].(string)
		if _, err := time.Parse("2006-01-02", d); err != nil {
			attrs["date"] = time.Now().UTC().Format("2006-01-02")
		}
	}
	return attrs, true
}

var localRefPattern = regexp.MustCompile(`^([a-z_]+)\[(\d+)\]$`)

// ParseLocalRef splits an extractor reference of the form "type[index]".
func ParseLocalRef(ref string) (EntityType, int, error) {
	m := localRefPattern.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return "", 0, fmt.Errorf("malformed entity reference %q", ref)
	}
	t := EntityType(m[1])
	if !t.Valid() {
		return "", 0, fmt.Errorf("unknown entity type in reference %q", ref)
	}
	idx, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("malformed entity reference %q", ref)
	}
	return t, idx, nil
}
