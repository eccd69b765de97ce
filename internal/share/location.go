package share

import (
	"encoding/json"
	"fmt"

	"meshbridge/pkg/models"
)

// EncodeLocation serializes a shared location for the wire, applying the
// default name when none is set.
func EncodeLocation(loc *models.SharedLocation) ([]byte, error) {
	out := *loc
	if out.Name == "" {
		out.Name = defaultName(out.Department, out.UnitNo)
	}
	data, err := json.Marshal(&out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode location: %w", err)
	}
	return data, nil
}

// ParseLocation deserializes one datagram payload. Unknown extra keys are
// tolerated; construction fails only when a required key is missing. A
// missing name falls back to "{department}_{unit_no}".
func ParseLocation(data []byte) (*models.SharedLocation, error) {
	var raw struct {
		Lat        *float64 `json:"lat"`
		Lon        *float64 `json:"lon"`
		AltFtMSL   *int     `json:"alt_ft_msl"`
		Timestamp  *int64   `json:"timestamp"`
		Department *string  `json:"department"`
		UnitNo     *int     `json:"unit_no"`
		Name       string   `json:"name"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode location: %w", err)
	}

	switch {
	case raw.Lat == nil:
		return nil, fmt.Errorf("shared location missing key: lat")
	case raw.Lon == nil:
		return nil, fmt.Errorf("shared location missing key: lon")
	case raw.AltFtMSL == nil:
		return nil, fmt.Errorf("shared location missing key: alt_ft_msl")
	case raw.Timestamp == nil:
		return nil, fmt.Errorf("shared location missing key: timestamp")
	case raw.Department == nil:
		return nil, fmt.Errorf("shared location missing key: department")
	case raw.UnitNo == nil:
		return nil, fmt.Errorf("shared location missing key: unit_no")
	}

	loc := &models.SharedLocation{
		Lat:        *raw.Lat,
		Lon:        *raw.Lon,
		AltFtMSL:   *raw.AltFtMSL,
		Timestamp:  *raw.Timestamp,
		Department: *raw.Department,
		UnitNo:     *raw.UnitNo,
		Name:       raw.Name,
	}
	if loc.Name == "" {
		loc.Name = defaultName(loc.Department, loc.UnitNo)
	}
	return loc, nil
}

func defaultName(department string, unitNo int) string {
	return fmt.Sprintf("%s_%d", department, unitNo)
}
