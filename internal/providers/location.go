package providers

import (
	"fmt"
	"time"

	"github.com/linkhub/linkhub/internal/config"
	"github.com/linkhub/linkhub/internal/errors"
	"github.com/linkhub/linkhub/internal/models"
	"github.com/linkhub/linkhub/internal/statetoken"
	"github.com/linkhub/linkhub/internal/syncengine"
)

var locationCapability = map[string]interface{}{
	"min_interval_s":  300,
	"accuracy_meters": 100,
	"batch_limit":     200,
}

// geoRegion is one entry in the offline reverse-geocode table: a bounding
// box and the place it names. Lookups walk the table in order, so more
// specific boxes go first.
type geoRegion struct {
	name                   string
	minLat, maxLat         float64
	minLon, maxLon         float64
}

var geoRegions = []geoRegion{
	{"San Francisco", 37.6, 37.85, -122.55, -122.35},
	{"New York", 40.55, 40.95, -74.15, -73.65},
	{"London", 51.3, 51.7, -0.5, 0.3},
	{"Berlin", 52.35, 52.65, 13.1, 13.75},
	{"Tokyo", 35.5, 35.85, 139.5, 139.95},
}

func reverseGeocode(lat, lon float64) string {
	for _, region := range geoRegions {
		if lat >= region.minLat && lat <= region.maxLat && lon >= region.minLon && lon <= region.maxLon {
			return region.name
		}
	}
	return ""
}

// NewLocation builds the location adapter. Visits are keyed by the device
// sample id and upserted, since the device may re-send a visit with a
// refined position.
func NewLocation(cfg config.ProviderConfig, deps Deps, states *statetoken.Codec) Adapter {
	return newDeviceAdapter(models.ProviderLocation, cfg, deps, states,
		"Places", locationCapability, translateLocationSample, classifyLocationRecord, syncengine.PolicyUpsert)
}

func translateLocationSample(sample map[string]interface{}) (syncengine.Record, error) {
	id, _ := sample["id"].(string)
	if id == "" {
		return syncengine.Record{}, &errors.ErrDataValidation{Provider: models.ProviderLocation, Field: "id"}
	}
	lat, latOK := sample["lat"].(float64)
	lon, lonOK := sample["lon"].(float64)
	if !latOK || !lonOK {
		return syncengine.Record{}, &errors.ErrDataValidation{Provider: models.ProviderLocation, Field: "lat/lon"}
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return syncengine.Record{}, &errors.ErrDataValidation{Provider: models.ProviderLocation, Field: "lat/lon"}
	}

	var at time.Time
	if raw, _ := sample["recorded_at"].(string); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return syncengine.Record{}, &errors.ErrDataValidation{Provider: models.ProviderLocation, Field: "recorded_at", Err: err}
		}
		at = parsed
	}

	place := reverseGeocode(lat, lon)
	title := place
	if title == "" {
		title = fmt.Sprintf("%.4f, %.4f", lat, lon)
	}

	return syncengine.Record{
		ExternalID:   id,
		ExternalType: "visit",
		Title:        title,
		Timestamp:    at,
		Attributes: map[string]interface{}{
			"lat":         lat,
			"lon":         lon,
			"place":       place,
			"recorded_at": at.Format(time.RFC3339),
		},
		AttributeTypes: map[string]models.DataType{
			"lat":         models.TypeNumber,
			"lon":         models.TypeNumber,
			"place":       models.TypeString,
			"recorded_at": models.TypeDate,
		},
	}, nil
}

func classifyLocationRecord(rec syncengine.Record) string {
	place, _ := rec.Attributes["place"].(string)
	return place
}
