package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chxlky/trello-citydash/internal/models"
)

var (
	// ErrCityConfig means an explicit city mode was requested but the board lacks what it needs.
	ErrCityConfig = errors.New("city mode misconfigured")
	// ErrCityAmbiguous means auto mode found no usable strategy.
	ErrCityAmbiguous = errors.New("city mode could not be detected")
)

var cityFieldTokens = []string{"ciudad", "city"}

// PickCityField finds the custom field holding the city: an exact
// (case-insensitive, accent-sensitive) name match first, then any field
// mentioning ciudad or city.
func PickCityField(fields []models.CustomField, configuredName string) *models.CustomField {
	want := normalizeName(configuredName)
	for i := range fields {
		if want != "" && normalizeName(fields[i].Name) == want {
			return &fields[i]
		}
	}
	for i := range fields {
		if containsAny(foldToken(fields[i].Name), cityFieldTokens) {
			return &fields[i]
		}
	}
	return nil
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func hasNamedLabel(labels []models.Label) bool {
	for _, l := range labels {
		if strings.TrimSpace(l.Name) != "" {
			return true
		}
	}
	return false
}

func hasCityFieldValue(cards []models.Card, cityField *models.CustomField) bool {
	if cityField == nil {
		return false
	}
	for _, card := range cards {
		for _, item := range card.CustomFieldItems {
			if item.IDCustomField != cityField.ID {
				continue
			}
			if v := DecodeCustomFieldValue(cityField, item); strings.TrimSpace(v.String()) != "" {
				return true
			}
		}
	}
	return false
}

// ResolveCityMode decides, once per board, how cards map to cities.
// Explicit modes are validated; auto runs the detection heuristic.
func ResolveCityMode(requested CityMode, board models.Board, cityField *models.CustomField, configuredFieldName string, vocab Vocabulary) (CityMode, error) {
	namedLabels := false
	for _, card := range board.Cards {
		if hasNamedLabel(card.Labels) {
			namedLabels = true
			break
		}
	}

	switch requested {
	case CityModeList:
		if len(board.Lists) == 0 {
			return "", fmt.Errorf("%w: mode %q requires open lists but the board has none", ErrCityConfig, requested)
		}
		return CityModeList, nil
	case CityModeCustomField:
		if cityField == nil {
			return "", fmt.Errorf("%w: mode %q requires a custom field named %q but the board has none", ErrCityConfig, requested, configuredFieldName)
		}
		return CityModeCustomField, nil
	case CityModeLabel:
		if !namedLabels {
			return "", fmt.Errorf("%w: mode %q requires cards with named labels but none were found", ErrCityConfig, requested)
		}
		return CityModeLabel, nil
	}

	hasLists := len(board.Lists) > 0
	workflowLike := 0
	for _, l := range board.Lists {
		if containsAny(foldToken(l.Name), vocab.Workflow) {
			workflowLike++
		}
	}
	mostlyWorkflow := hasLists && workflowLike >= (len(board.Lists)+1)/2

	switch {
	case hasLists && !mostlyWorkflow:
		return CityModeList, nil
	case hasCityFieldValue(board.Cards, cityField):
		return CityModeCustomField, nil
	case namedLabels:
		return CityModeLabel, nil
	case hasLists:
		return CityModeList, nil
	case cityField != nil:
		return CityModeCustomField, nil
	}
	return "", fmt.Errorf("%w: the board has no lists, city field or named labels; set city.mode explicitly", ErrCityAmbiguous)
}

// ResolveCity maps one card to its city under mode. It never fails: every
// strategy falls back to NoCity.
func ResolveCity(card models.Card, mode CityMode, listByID map[string]models.List, fields []CustomFieldValue, cityFieldID string) string {
	switch mode {
	case CityModeList:
		if l, ok := listByID[card.IDList]; ok && strings.TrimSpace(l.Name) != "" {
			return strings.TrimSpace(l.Name)
		}
	case CityModeCustomField:
		for _, f := range fields {
			if cityFieldID == "" || f.FieldID != cityFieldID {
				continue
			}
			if s := strings.TrimSpace(f.Value.String()); s != "" {
				return s
			}
		}
	case CityModeLabel:
		for _, l := range card.Labels {
			if s := strings.TrimSpace(l.Name); s != "" {
				return s
			}
		}
	}
	return NoCity
}
