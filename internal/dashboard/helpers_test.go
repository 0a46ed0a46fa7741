package dashboard

import (
	"time"

	"github.com/chxlky/trello-citydash/internal/models"
)

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func testOptions() Options {
	return Options{
		BoardID:       "board1",
		CityMode:      CityModeAuto,
		CityFieldName: "Ciudad",
		UpcomingDays:  7,
		Vocabulary:    DefaultVocabulary(),
	}
}

func cityFieldDefs() []models.CustomField {
	return []models.CustomField{
		{ID: "cf-city", Name: "Ciudad", Type: "text"},
		{ID: "cf-designer", Name: "Diseñador", Type: "text"},
	}
}

func cityItem(city string) models.CustomFieldItem {
	return models.CustomFieldItem{IDCustomField: "cf-city", Value: &models.CustomFieldValue{Text: ptr(city)}}
}
