// Package seed loads reference data and demo tenants from a YAML fixtures file.
package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jvaguiar05/smart-park-system/pkg/apperrors"
	"github.com/jvaguiar05/smart-park-system/pkg/models"
)

// Fixtures is the root of a seed file. Children refer to lookups and keys by name.
type Fixtures struct {
	StoreTypes   []string        `yaml:"store_types"`
	SlotTypes    []string        `yaml:"slot_types"`
	VehicleTypes []string        `yaml:"vehicle_types"`
	Clients      []ClientFixture `yaml:"clients"`
}

type ClientFixture struct {
	Name             string                  `yaml:"name"`
	OnboardingStatus models.OnboardingStatus `yaml:"onboarding_status"`
	Establishments   []EstablishmentFixture  `yaml:"establishments"`
	Members          []MemberFixture         `yaml:"members"`
	APIKeys          []APIKeyFixture         `yaml:"api_keys"`
}

type EstablishmentFixture struct {
	Name      string       `yaml:"name"`
	StoreType string       `yaml:"store_type"`
	Address   string       `yaml:"address"`
	City      string       `yaml:"city"`
	State     string       `yaml:"state"`
	Lat       *float64     `yaml:"lat"`
	Lng       *float64     `yaml:"lng"`
	Lots      []LotFixture `yaml:"lots"`
}

type LotFixture struct {
	LotCode string          `yaml:"lot_code"`
	Name    string          `yaml:"name"`
	Slots   []SlotFixture   `yaml:"slots"`
	Cameras []CameraFixture `yaml:"cameras"`
}

type SlotFixture struct {
	SlotCode string       `yaml:"slot_code"`
	SlotType string       `yaml:"slot_type"`
	Polygon  [][2]float64 `yaml:"polygon"`
	Inactive bool         `yaml:"inactive"`
}

// MemberFixture grants a user a role. Establishment names one of the client's establishments.
type MemberFixture struct {
	UserID        uuid.UUID   `yaml:"user_id"`
	Role          models.Role `yaml:"role"`
	Establishment string      `yaml:"establishment"`
}

// APIKeyFixture declares an ingestion key. An empty Secret is generated at seed time.
type APIKeyFixture struct {
	Name   string `yaml:"name"`
	KeyID  string `yaml:"key_id"`
	Secret string `yaml:"secret"`
}

type CameraFixture struct {
	CameraCode string `yaml:"camera_code"`
	APIKey     string `yaml:"api_key"`
}

// LoadFile reads and validates a fixtures file.
func LoadFile(path string) (*Fixtures, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes fixtures from r. Unknown keys are rejected.
func Load(r io.Reader) (*Fixtures, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var fx Fixtures
	if err := dec.Decode(&fx); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// Validate checks cross references before anything is written.
func (fx *Fixtures) Validate() error {
	verr := &apperrors.ValidationError{}
	storeTypes := setOf(fx.StoreTypes)
	slotTypes := setOf(fx.SlotTypes)

	for ci, c := range fx.Clients {
		at := fmt.Sprintf("clients[%d]", ci)
		if c.Name == "" {
			verr.Add(at+".name", "is required")
		}
		if c.OnboardingStatus != "" && !c.OnboardingStatus.IsValid() {
			verr.Add(at+".onboarding_status", "is not a valid onboarding status")
		}

		keys := make(map[string]bool, len(c.APIKeys))
		for ki, k := range c.APIKeys {
			if k.KeyID == "" {
				verr.Add(fmt.Sprintf("%s.api_keys[%d].key_id", at, ki), "is required")
			}
			keys[k.KeyID] = true
		}

		establishments := make(map[string]bool, len(c.Establishments))
		for ei, e := range c.Establishments {
			eat := fmt.Sprintf("%s.establishments[%d]", at, ei)
			establishments[e.Name] = true
			if e.Name == "" {
				verr.Add(eat+".name", "is required")
			}
			if e.StoreType != "" && !storeTypes[e.StoreType] {
				verr.Add(eat+".store_type", "is not declared in store_types")
			}
			for li, l := range e.Lots {
				lat := fmt.Sprintf("%s.lots[%d]", eat, li)
				if l.LotCode == "" {
					verr.Add(lat+".lot_code", "is required")
				}
				for si, s := range l.Slots {
					if s.SlotCode == "" {
						verr.Add(fmt.Sprintf("%s.slots[%d].slot_code", lat, si), "is required")
					}
					if !slotTypes[s.SlotType] {
						verr.Add(fmt.Sprintf("%s.slots[%d].slot_type", lat, si), "is not declared in slot_types")
					}
				}
				for ki, cam := range l.Cameras {
					if cam.CameraCode == "" {
						verr.Add(fmt.Sprintf("%s.cameras[%d].camera_code", lat, ki), "is required")
					}
					if !keys[cam.APIKey] {
						verr.Add(fmt.Sprintf("%s.cameras[%d].api_key", lat, ki), "is not declared in api_keys")
					}
				}
			}
		}

		for mi, m := range c.Members {
			member := models.ClientMember{ClientID: 1, UserID: m.UserID, Role: m.Role}
			if m.Establishment != "" {
				if !establishments[m.Establishment] {
					verr.Add(fmt.Sprintf("%s.members[%d].establishment", at, mi), "is not one of the client's establishments")
					continue
				}
				placeholder := int64(1)
				member.EstablishmentID = &placeholder
			}
			if err := member.Validate(); err != nil {
				var mverr *apperrors.ValidationError
				if errors.As(err, &mverr) {
					for field, msg := range mverr.Fields {
						verr.Add(fmt.Sprintf("%s.members[%d].%s", at, mi, field), msg)
					}
				}
			}
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func setOf(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
