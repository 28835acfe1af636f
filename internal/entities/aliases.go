package entities

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dominicdesy/intelia-expert-sub012/internal/textnorm"
)

// AliasTable maps name variants to canonical entity values. Tables ship with
// built-in defaults and can be extended from a YAML file at startup; a
// malformed file is fatal there and only there.
type AliasTable struct {
	Breeds   []BreedAliases   `yaml:"breeds"`
	Metrics  []MetricAliases  `yaml:"metrics"`
	Sexes    []SexAliases     `yaml:"sexes"`
	Products []ProductAliases `yaml:"products"`
}

// BreedAliases lists the accepted variants for one canonical breed.
type BreedAliases struct {
	Canonical string   `yaml:"canonical"`
	Aliases   []string `yaml:"aliases"`
}

// MetricAliases lists the accepted variants for one metric type.
type MetricAliases struct {
	Metric  MetricType `yaml:"metric"`
	Aliases []string   `yaml:"aliases"`
}

// SexAliases lists the accepted variants for one sex value.
type SexAliases struct {
	Sex     Sex      `yaml:"sex"`
	Aliases []string `yaml:"aliases"`
}

// ProductAliases lists the accepted name variants for one product identifier.
type ProductAliases struct {
	ProductID string   `yaml:"product_id"`
	Aliases   []string `yaml:"aliases"`
}

// DefaultAliasTable returns the built-in alias table covering the supported
// breeds and the English/French/Spanish metric and sex vocabulary.
func DefaultAliasTable() *AliasTable {
	return &AliasTable{
		Breeds: []BreedAliases{
			{Canonical: "Cobb 500", Aliases: []string{"cobb 500", "cobb500", "cobb-500", "cobb"}},
			{Canonical: "Cobb 700", Aliases: []string{"cobb 700", "cobb700", "cobb-700"}},
			{Canonical: "Ross 308", Aliases: []string{"ross 308", "ross308", "ross-308", "ross"}},
			{Canonical: "Ross 708", Aliases: []string{"ross 708", "ross708", "ross-708"}},
			{Canonical: "Hubbard Flex", Aliases: []string{"hubbard flex", "hubbard"}},
			{Canonical: "Hubbard JA787", Aliases: []string{"hubbard ja787", "ja787", "ja 787"}},
		},
		Metrics: []MetricAliases{
			{Metric: MetricBodyWeight, Aliases: []string{
				"body weight", "weight", "live weight", "poids", "poids vif", "peso", "peso vivo",
			}},
			{Metric: MetricFCR, Aliases: []string{
				"fcr", "feed conversion", "feed conversion ratio", "conversion ratio",
				"indice de consommation", "indice de conversion", "conversion alimentaire",
				"conversion alimenticia", "indice de conversion alimenticia",
			}},
			{Metric: MetricDailyGain, Aliases: []string{
				"daily gain", "average daily gain", "adg", "gain", "gain quotidien",
				"gain moyen quotidien", "gmq", "ganancia diaria",
			}},
			{Metric: MetricMortality, Aliases: []string{
				"mortality", "mortality rate", "mortalite", "taux de mortalite", "mortalidad",
			}},
			{Metric: MetricFeedIntake, Aliases: []string{
				"feed intake", "feed consumption", "consommation d'aliment", "consommation aliment",
				"consumo de alimento", "consumo de pienso",
			}},
			{Metric: MetricWaterIntake, Aliases: []string{
				"water intake", "water consumption", "consommation d'eau", "consumo de agua",
			}},
		},
		Sexes: []SexAliases{
			{Sex: SexMale, Aliases: []string{"male", "males", "rooster", "mâle", "mâles", "macho", "machos"}},
			{Sex: SexFemale, Aliases: []string{"female", "females", "hen", "femelle", "femelles", "hembra", "hembras"}},
			{Sex: SexAsHatched, Aliases: []string{"as hatched", "as-hatched", "mixed", "straight run", "mixte", "mixto"}},
		},
		Products: []ProductAliases{
			{ProductID: "paracox-5", Aliases: []string{"paracox 5", "paracox"}},
			{ProductID: "poulvac-ecoli", Aliases: []string{"poulvac e coli", "poulvac"}},
			{ProductID: "aviguard", Aliases: []string{"aviguard"}},
			{ProductID: "cevac-ibird", Aliases: []string{"cevac ibird", "cevac"}},
		},
	}
}

// LoadAliasTable reads an alias table from a YAML file and merges it over the
// defaults. An unreadable or malformed file is a configuration error.
func LoadAliasTable(path string) (*AliasTable, error) {
	table := DefaultAliasTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias table: %w", err)
	}

	var extra AliasTable
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("parse alias table: %w", err)
	}

	table.merge(&extra)
	if err := table.validate(); err != nil {
		return nil, fmt.Errorf("validate alias table: %w", err)
	}
	return table, nil
}

func (t *AliasTable) merge(extra *AliasTable) {
	for _, b := range extra.Breeds {
		merged := false
		for i := range t.Breeds {
			if t.Breeds[i].Canonical == b.Canonical {
				t.Breeds[i].Aliases = append(t.Breeds[i].Aliases, b.Aliases...)
				merged = true
				break
			}
		}
		if !merged {
			t.Breeds = append(t.Breeds, b)
		}
	}
	for _, m := range extra.Metrics {
		merged := false
		for i := range t.Metrics {
			if t.Metrics[i].Metric == m.Metric {
				t.Metrics[i].Aliases = append(t.Metrics[i].Aliases, m.Aliases...)
				merged = true
				break
			}
		}
		if !merged {
			t.Metrics = append(t.Metrics, m)
		}
	}
	for _, s := range extra.Sexes {
		merged := false
		for i := range t.Sexes {
			if t.Sexes[i].Sex == s.Sex {
				t.Sexes[i].Aliases = append(t.Sexes[i].Aliases, s.Aliases...)
				merged = true
				break
			}
		}
		if !merged {
			t.Sexes = append(t.Sexes, s)
		}
	}
	for _, p := range extra.Products {
		merged := false
		for i := range t.Products {
			if t.Products[i].ProductID == p.ProductID {
				t.Products[i].Aliases = append(t.Products[i].Aliases, p.Aliases...)
				merged = true
				break
			}
		}
		if !merged {
			t.Products = append(t.Products, p)
		}
	}
}

func (t *AliasTable) validate() error {
	if len(t.Breeds) == 0 {
		return fmt.Errorf("no breeds defined")
	}
	for _, b := range t.Breeds {
		if b.Canonical == "" {
			return fmt.Errorf("breed with empty canonical name")
		}
		if len(b.Aliases) == 0 {
			return fmt.Errorf("breed %q has no aliases", b.Canonical)
		}
	}
	for _, s := range t.Sexes {
		switch s.Sex {
		case SexMale, SexFemale, SexAsHatched:
		default:
			return fmt.Errorf("unknown sex value %q", s.Sex)
		}
	}
	for _, p := range t.Products {
		if p.ProductID == "" {
			return fmt.Errorf("product with empty identifier")
		}
		if len(p.Aliases) == 0 {
			return fmt.Errorf("product %q has no aliases", p.ProductID)
		}
	}
	return nil
}

// aliasEntry is one normalized alias prepared for longest-match-first lookup.
type aliasEntry struct {
	alias     string // normalized alias text
	canonical string
	metric    MetricType
	sex       Sex
	productID string
}

// compile normalizes every alias for matching. Longer aliases must be tried
// before their prefixes ("cobb 500" before "cobb").
func (t *AliasTable) compile() (breeds, metrics, sexes, products []aliasEntry) {
	for _, b := range t.Breeds {
		for _, a := range b.Aliases {
			breeds = append(breeds, aliasEntry{alias: textnorm.Normalize(a), canonical: b.Canonical})
		}
	}
	for _, m := range t.Metrics {
		for _, a := range m.Aliases {
			metrics = append(metrics, aliasEntry{alias: textnorm.Normalize(a), metric: m.Metric})
		}
	}
	for _, s := range t.Sexes {
		for _, a := range s.Aliases {
			sexes = append(sexes, aliasEntry{alias: textnorm.Normalize(a), sex: s.Sex})
		}
	}
	for _, p := range t.Products {
		for _, a := range p.Aliases {
			products = append(products, aliasEntry{alias: textnorm.Normalize(a), productID: p.ProductID})
		}
	}
	sortByAliasLength(breeds)
	sortByAliasLength(metrics)
	sortByAliasLength(sexes)
	sortByAliasLength(products)
	return breeds, metrics, sexes, products
}

func sortByAliasLength(entries []aliasEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && len(entries[j].alias) > len(entries[j-1].alias); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}
