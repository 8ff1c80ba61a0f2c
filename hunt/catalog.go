/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package hunt

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry is one target of the hunt as listed in a catalog.
type Entry struct {
	ID             string `yaml:"id" json:"id"`
	Name           string `yaml:"name" json:"name"`
	ReferenceImage string `yaml:"reference_image" json:"reference_image"`
	Points         int    `yaml:"points" json:"points"`
}

// Catalog is the fixed list of targets every session starts from.
type Catalog struct {
	Items []Entry `yaml:"items"`
}

const defaultPoints = 25

func entry(id, name, image string) Entry {
	return Entry{ID: id, Name: name, ReferenceImage: "/images/" + image, Points: defaultPoints}
}

// DefaultCatalog is the park course the game was designed around.
func DefaultCatalog() Catalog {
	return Catalog{Items: []Entry{
		entry("1", "Parking Sign", "parking-sign.jpg"),
		entry("2", "Caution Sign", "caution-sign.jpg"),
		entry("3", "Number 108", "number-108.jpg"),
		entry("4", "Course 3 Sign", "course-3-sign.jpg"),
		entry("5", "Park Entrance Sign", "park-entrance-sign.jpg"),
		entry("6", "Memorial Bench Plaque", "memorial-bench-plaque.jpg"),
		entry("7", "Tee 12 Marker", "tee-12-marker.jpg"),
		entry("8", "Paw Print", "paw-print.jpg"),
		entry("9", "Baseball 288 Marker", "baseball-288-marker.jpg"),
		entry("10", "No Dogs Sign", "no-dogs-sign.jpg"),
		entry("11", "Number 16375", "number-16375.jpg"),
		entry("12", "Pink Ribbon Tree", "pink-ribbon-tree.jpg"),
		entry("13", "Sunflowers", "sunflowers.jpg"),
		entry("14", "Heads Up Sign", "heads-up-sign.jpg"),
		entry("15", "Mining Bees Sign", "mining-bees-sign.jpg"),
		entry("16", "Utility Numbers", "utility-numbers.jpg"),
		entry("17", "Wildlife Habitat Sign", "wildlife-habitat-sign.jpg"),
		entry("18", "Green Shade Canopy", "green-shade-canopy.jpg"),
		entry("19", "Decorative Frog", "decorative-frog.jpg"),
		entry("20", "Wooden Post Marker", "wooden-post-marker.jpg"),
	}}
}

// LoadCatalog reads a YAML catalog from path.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse catalog: %w", err)
	}

	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}

	return c, nil
}

func (c Catalog) Validate() error {
	if len(c.Items) == 0 {
		return errors.New("catalog has no items")
	}

	seen := make(map[string]bool, len(c.Items))
	for i, e := range c.Items {
		switch {
		case e.ID == "":
			return fmt.Errorf("catalog item %d: missing id", i)
		case seen[e.ID]:
			return fmt.Errorf("catalog item %d: duplicate id %q", i, e.ID)
		case e.Name == "":
			return fmt.Errorf("catalog item %q: missing name", e.ID)
		case e.Points <= 0:
			return fmt.Errorf("catalog item %q: points must be positive", e.ID)
		}
		seen[e.ID] = true
	}

	return nil
}

// Shuffle permutes entries in place with Fisher-Yates. intn must return a
// uniform value in [0,n); nil uses math/rand/v2.
func Shuffle[T any](s []T, intn func(n int) int) {
	if intn == nil {
		intn = rand.IntN
	}
	for i := len(s) - 1; i > 0; i-- {
		j := intn(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}
