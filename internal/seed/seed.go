// Package seed loads the participant registry and the item catalogue.
package seed

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/technobid/auction-backend/internal/engine"
	"github.com/technobid/auction-backend/pkg/types"
)

type Seed struct {
	Participants []types.Participant    `yaml:"participants"`
	Catalogue    []types.CatalogueEntry `yaml:"catalogue"`
}

func Load(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed: %w", err)
	}
	s, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Seed{}, fmt.Errorf("seed %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and normalizes a seed document. Unknown fields are errors so
// typos in hand-written catalogues surface at boot.
func Parse(r io.Reader) (Seed, error) {
	var s Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && err != io.EOF {
		return Seed{}, fmt.Errorf("decode: %w", err)
	}
	if err := s.normalize(); err != nil {
		return Seed{}, err
	}
	return s, nil
}

func (s *Seed) normalize() error {
	seen := map[string]bool{}
	for i := range s.Participants {
		p := &s.Participants[i]
		p.EnrollmentID = strings.TrimSpace(p.EnrollmentID)
		if p.EnrollmentID == "" {
			return fmt.Errorf("participant %d: enrollmentId is required", i)
		}
		if seen[p.EnrollmentID] {
			return fmt.Errorf("participant %q listed twice", p.EnrollmentID)
		}
		seen[p.EnrollmentID] = true
	}

	seen = map[string]bool{}
	for i := range s.Catalogue {
		item := &s.Catalogue[i]
		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			return fmt.Errorf("catalogue entry %d: id is required", i)
		}
		if seen[item.ID] {
			return fmt.Errorf("catalogue entry %q listed twice", item.ID)
		}
		seen[item.ID] = true

		phase, ok := types.ParsePhase(string(item.Phase))
		if !ok {
			return fmt.Errorf("catalogue entry %q: unknown phase %q", item.ID, item.Phase)
		}
		item.Phase = phase

		switch types.Kind(strings.ToUpper(string(item.Kind))) {
		case "":
			item.Kind = engine.KindFor(phase)
		case types.KindPlayer:
			item.Kind = types.KindPlayer
		case types.KindAccessory:
			item.Kind = types.KindAccessory
		default:
			return fmt.Errorf("catalogue entry %q: unknown kind %q", item.ID, item.Kind)
		}

		if item.BasePrice <= 0 {
			return fmt.Errorf("catalogue entry %q: basePrice must be positive", item.ID)
		}
		item.Status = types.ItemAvailable
	}
	return nil
}
