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

// healthCapability tells the device app which sample types to capture and
// how often to upload.
var healthCapability = map[string]interface{}{
	"sample_types":      []string{"steps", "heart_rate", "sleep", "workout"},
	"upload_interval_s": 3600,
	"batch_limit":       500,
}

// NewHealth builds the HealthKit adapter. Data arrives as device uploads;
// samples are keyed by the device-assigned sample id, and re-uploads of the
// same sample overwrite in place.
func NewHealth(cfg config.ProviderConfig, deps Deps, states *statetoken.Codec) Adapter {
	return newDeviceAdapter(models.ProviderHealth, cfg, deps, states,
		"Health", healthCapability, translateHealthSample, classifyHealthRecord, syncengine.PolicyUpsert)
}

func translateHealthSample(sample map[string]interface{}) (syncengine.Record, error) {
	id, _ := sample["id"].(string)
	kind, _ := sample["type"].(string)
	if id == "" {
		return syncengine.Record{}, &errors.ErrDataValidation{Provider: models.ProviderHealth, Field: "id"}
	}
	if kind == "" {
		return syncengine.Record{}, &errors.ErrDataValidation{Provider: models.ProviderHealth, Field: "type"}
	}
	value, ok := sample["value"].(float64)
	if !ok {
		return syncengine.Record{}, &errors.ErrDataValidation{Provider: models.ProviderHealth, Field: "value"}
	}

	unit, _ := sample["unit"].(string)
	var at time.Time
	if raw, _ := sample["recorded_at"].(string); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return syncengine.Record{}, &errors.ErrDataValidation{Provider: models.ProviderHealth, Field: "recorded_at", Err: err}
		}
		at = parsed
	}

	return syncengine.Record{
		ExternalID:   id,
		ExternalType: kind,
		Title:        fmt.Sprintf("%s %g %s", kind, value, unit),
		Timestamp:    at,
		Attributes: map[string]interface{}{
			"type":        kind,
			"value":       value,
			"unit":        unit,
			"recorded_at": at.Format(time.RFC3339),
		},
		AttributeTypes: map[string]models.DataType{
			"type":        models.TypeString,
			"value":       models.TypeNumber,
			"unit":        models.TypeString,
			"recorded_at": models.TypeDate,
		},
	}, nil
}

func classifyHealthRecord(rec syncengine.Record) string {
	switch rec.ExternalType {
	case "steps", "workout":
		return "Activity"
	case "heart_rate":
		return "Vitals"
	case "sleep":
		return "Sleep"
	default:
		return ""
	}
}
