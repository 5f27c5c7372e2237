// Package labs recommends accredited testing laboratories for a product
// based on its category and the standards it was found to comply with.
package labs

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/KevinDz11/nopro/internal/model"
	"gopkg.in/yaml.v3"
)

//go:embed data/labs.yaml
var embedded []byte

// Lab is one accredited laboratory
type Lab struct {
	Name         string           `yaml:"name"`
	Abbreviation string           `yaml:"abbreviation"`
	Address      string           `yaml:"address"`
	Phone        string           `yaml:"phone"`
	Website      string           `yaml:"website"`
	Categories   []model.Category `yaml:"categories"`
	Standards    []string         `yaml:"standards"`
	TestTypes    []string         `yaml:"test_types"`
	Accreditor   string           `yaml:"accreditor"`
	ServiceType  string           `yaml:"service_type"`
}

type labsFile struct {
	Laboratories []Lab `yaml:"laboratories"`
}

// Directory is a read-only set of laboratories
type Directory struct {
	labs []Lab
}

// Default returns the built-in directory
func Default() (*Directory, error) {
	return Load(bytes.NewReader(embedded))
}

// LoadFile reads a directory from a YAML file
func LoadFile(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labs file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load decodes a directory
func Load(r io.Reader) (*Directory, error) {
	var lf labsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&lf); err != nil {
		return nil, fmt.Errorf("decode labs: %w", err)
	}
	for i, l := range lf.Laboratories {
		if strings.TrimSpace(l.Name) == "" {
			return nil, fmt.Errorf("laboratory %d has no name", i+1)
		}
	}
	return &Directory{labs: lf.Laboratories}, nil
}

// Labs returns every laboratory in file order
func (d *Directory) Labs() []Lab {
	return append([]Lab(nil), d.labs...)
}

// Recommend scores every laboratory: 3 points for the product category and
// 2 per accredited standard shared with the compliant ones. Results are
// sorted by score, ties kept in file order. limit <= 0 returns all.
func (d *Directory) Recommend(cat model.Category, compliant []string, limit int) []model.LabRecommendation {
	have := make(map[string]bool, len(compliant))
	for _, s := range compliant {
		have[s] = true
	}

	recs := make([]model.LabRecommendation, 0, len(d.labs))
	for _, l := range d.labs {
		score := 0
		var reasons []string

		if l.serves(cat) {
			score += 3
			reasons = append(reasons, "experiencia en "+string(cat))
		}

		var shared []string
		for _, s := range l.Standards {
			if have[s] {
				shared = append(shared, s)
			}
		}
		score += 2 * len(shared)
		if len(shared) > 0 {
			reasons = append(reasons, "acreditación en "+strings.Join(shared, ", "))
		}

		reason := "Laboratorio disponible para pruebas técnicas"
		if len(reasons) > 0 {
			reason = "Cuenta con " + strings.Join(reasons, " y ")
		}

		recs = append(recs, model.LabRecommendation{
			Name:        l.Name,
			Address:     l.Address,
			Phone:       l.Phone,
			Website:     l.Website,
			ServiceType: l.ServiceType,
			Score:       score,
			Reason:      reason,
			Standards:   shared,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

func (l Lab) serves(cat model.Category) bool {
	for _, c := range l.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// Compliant lists the standards of a report's checklist that were found
// compliant, in checklist order.
func Compliant(entries []model.ChecklistEntry) []string {
	var out []string
	for _, e := range entries {
		if e.State == model.StateCompliant {
			out = append(out, e.Standard)
		}
	}
	return out
}
