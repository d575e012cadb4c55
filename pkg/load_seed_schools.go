package pkg

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/schoolwatch-hk/schoolwatch/models"
)

type seedSchool struct {
	NameEn           string   `json:"nameEn"`
	NameZh           string   `json:"nameZh"`
	Level            string   `json:"level"`
	Type             string   `json:"type"`
	DistrictEn       string   `json:"districtEn"`
	DistrictZh       string   `json:"districtZh"`
	GenderEn         *string  `json:"genderEn"`
	GenderZh         *string  `json:"genderZh"`
	ReligionEn       *string  `json:"religionEn"`
	ReligionZh       *string  `json:"religionZh"`
	AddressEn        *string  `json:"addressEn"`
	AddressZh        *string  `json:"addressZh"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	WebsiteURL       string   `json:"websiteUrl"`
	AnnouncementsURL *string  `json:"announcementsUrl"`
	SourceLastUpdate *string  `json:"sourceLastUpdate"`
}

// LoadSeedSchools reads the externally produced roster snapshot. Rows
// without both a name and a website URL are skipped rather than failing the
// whole import.
func LoadSeedSchools(filename string) ([]models.School, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %v", err)
	}
	var rows []seedSchool
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %v", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("seed file is empty")
	}

	var schools []models.School
	for _, row := range rows {
		if row.NameEn == "" || row.WebsiteURL == "" {
			continue
		}
		schools = append(schools, models.School{
			NameEn:           row.NameEn,
			NameZh:           row.NameZh,
			Level:            row.Level,
			Type:             row.Type,
			DistrictEn:       row.DistrictEn,
			DistrictZh:       row.DistrictZh,
			GenderEn:         row.GenderEn,
			GenderZh:         row.GenderZh,
			ReligionEn:       row.ReligionEn,
			ReligionZh:       row.ReligionZh,
			AddressEn:        row.AddressEn,
			AddressZh:        row.AddressZh,
			Latitude:         row.Latitude,
			Longitude:        row.Longitude,
			WebsiteURL:       row.WebsiteURL,
			AnnouncementsURL: row.AnnouncementsURL,
			SourceLastUpdate: row.SourceLastUpdate,
		})
	}
	if len(schools) == 0 {
		return nil, fmt.Errorf("seed file has no usable school rows")
	}
	return schools, nil
}
