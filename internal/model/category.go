package model

import (
	"fmt"
	"strings"

	"github.com/KevinDz11/nopro/internal/textnorm"
)

// Category is the product family a document belongs to
type Category string

const (
	CategoryLaptop    Category = "Laptop"
	CategorySmartTV   Category = "SmartTV"
	CategoryLuminaire Category = "Luminaire"
)

// DefaultCategory is used when a category cannot be recognized
const DefaultCategory = CategoryLaptop

// Categories lists every known category in catalog order
func Categories() []Category {
	return []Category{CategoryLaptop, CategorySmartTV, CategoryLuminaire}
}

// DocType is the kind of compliance document being analyzed
type DocType string

const (
	DocTypeTechnicalSheet DocType = "TechnicalSheet"
	DocTypeManual         DocType = "Manual"
	DocTypeLabel          DocType = "Label"
)

// DefaultDocType is used when a document type cannot be recognized
const DefaultDocType = DocTypeTechnicalSheet

// DocTypes lists every known document type
func DocTypes() []DocType {
	return []DocType{DocTypeTechnicalSheet, DocTypeManual, DocTypeLabel}
}

// Visual reports whether documents of this type are evaluated from images
func (d DocType) Visual() bool {
	return d == DocTypeLabel
}

var categorySynonyms = map[string]Category{
	"laptop":               CategoryLaptop,
	"laptops":              CategoryLaptop,
	"notebook":             CategoryLaptop,
	"portatil":             CategoryLaptop,
	"computadora portatil": CategoryLaptop,
	"computadora":          CategoryLaptop,
	"smarttv":              CategorySmartTV,
	"smart tv":             CategorySmartTV,
	"smart-tv":             CategorySmartTV,
	"tv":                   CategorySmartTV,
	"television":           CategorySmartTV,
	"televisor":            CategorySmartTV,
	"pantalla":             CategorySmartTV,
	"luminaire":            CategoryLuminaire,
	"luminaria":            CategoryLuminaire,
	"luminario":            CategoryLuminaire,
	"lampara":              CategoryLuminaire,
	"led":                  CategoryLuminaire,
}

// containment checks run in this order; more specific stems go first
var categoryStems = []struct {
	stem string
	cat  Category
}{
	{"smart", CategorySmartTV},
	{"televi", CategorySmartTV},
	{"lumin", CategoryLuminaire},
	{"lampara", CategoryLuminaire},
	{"laptop", CategoryLaptop},
	{"notebook", CategoryLaptop},
	{"portatil", CategoryLaptop},
}

// ParseCategory maps a free-form category name onto a Category.
// Unknown names resolve to DefaultCategory together with ErrUnknownCategory,
// which callers treat as a warning.
func ParseCategory(raw string) (Category, error) {
	key := normalizeKey(raw)
	for _, c := range Categories() {
		if key == normalizeKey(string(c)) {
			return c, nil
		}
	}
	if c, ok := categorySynonyms[key]; ok {
		return c, nil
	}
	for _, s := range categoryStems {
		if key != "" && strings.Contains(key, s.stem) {
			return s.cat, nil
		}
	}
	return DefaultCategory, fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
}

var docTypeSynonyms = map[string]DocType{
	"ficha":             DocTypeTechnicalSheet,
	"ficha tecnica":     DocTypeTechnicalSheet,
	"technical sheet":   DocTypeTechnicalSheet,
	"technicalsheet":    DocTypeTechnicalSheet,
	"datasheet":         DocTypeTechnicalSheet,
	"data sheet":        DocTypeTechnicalSheet,
	"hoja de datos":     DocTypeTechnicalSheet,
	"spec sheet":        DocTypeTechnicalSheet,
	"manual":            DocTypeManual,
	"user manual":       DocTypeManual,
	"manual de usuario": DocTypeManual,
	"instructivo":       DocTypeManual,
	"instructions":      DocTypeManual,
	"etiqueta":          DocTypeLabel,
	"label":             DocTypeLabel,
	"marcado":           DocTypeLabel,
	"placa":             DocTypeLabel,
}

var docTypeStems = []struct {
	stem string
	doc  DocType
}{
	{"ficha", DocTypeTechnicalSheet},
	{"sheet", DocTypeTechnicalSheet},
	{"hoja", DocTypeTechnicalSheet},
	{"manual", DocTypeManual},
	{"instructi", DocTypeManual},
	{"etiqueta", DocTypeLabel},
	{"label", DocTypeLabel},
}

// ParseDocType maps a free-form document type onto a DocType.
// Unknown names resolve to DefaultDocType with ErrUnknownDocType.
func ParseDocType(raw string) (DocType, error) {
	key := normalizeKey(raw)
	for _, d := range DocTypes() {
		if key == normalizeKey(string(d)) {
			return d, nil
		}
	}
	if d, ok := docTypeSynonyms[key]; ok {
		return d, nil
	}
	for _, s := range docTypeStems {
		if key != "" && strings.Contains(key, s.stem) {
			return s.doc, nil
		}
	}
	return DefaultDocType, fmt.Errorf("%w: %q", ErrUnknownDocType, raw)
}

func normalizeKey(s string) string {
	s = textnorm.Fold(s)
	s = strings.NewReplacer("_", " ", ".", " ").Replace(s)
	return textnorm.Squash(s)
}
