package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"growrack/internal/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// Firmware sends compact keys to save radio airtime; each decoder
// remaps them onto the canonical names before validation.
var (
	telemetryAliases = map[string]string{
		"t":  "temperature",
		"h":  "humidity",
		"m":  "moisture",
		"l":  "light",
		"tm": "timestamp",
	}
	statusAliases = map[string]string{
		"o":   "online",
		"tm":  "timestamp",
		"fw":  "firmware",
		"up":  "uptime",
		"mem": "free_mem",
	}
	errorAliases = map[string]string{
		"msg": "message",
		"sev": "severity",
	}
)

// TelemetryPayload is one decoded sensor sample. Sensor fields are
// pointers so a literal 0 survives the required check.
type TelemetryPayload struct {
	Temperature *float64 `json:"temperature" validate:"required,gte=-50,lte=100"`
	Humidity    *float64 `json:"humidity" validate:"required,gte=0,lte=100"`
	Moisture    *float64 `json:"moisture" validate:"required,gte=0,lte=100"`
	Light       *float64 `json:"light" validate:"required,gte=0"`
	Timestamp   int64    `json:"timestamp" validate:"omitempty,gt=0"`
}

// MeasuredAt returns the payload's own epoch-ms timestamp when set,
// otherwise the supplied processing time.
func (p TelemetryPayload) MeasuredAt(now time.Time) time.Time {
	if p.Timestamp > 0 {
		return time.UnixMilli(p.Timestamp).UTC()
	}
	return now.UTC()
}

// StatusPayload is a decoded liveness report. Only the online flag is
// mandatory.
type StatusPayload struct {
	Online       *bool  `json:"online" validate:"required"`
	Timestamp    int64  `json:"timestamp" validate:"omitempty,gt=0"`
	Firmware     string `json:"firmware"`
	IP           string `json:"ip" validate:"omitempty,ip"`
	HardwareAddr string `json:"mac" validate:"omitempty,mac"`
	RSSI         *int   `json:"rssi" validate:"omitempty,gte=-110,lte=0"`
	UptimeSec    *int64 `json:"uptime" validate:"omitempty,gte=0"`
	FreeMemBytes *int64 `json:"free_mem" validate:"omitempty,gte=0"`
}

// ReportedAt returns the payload's own epoch-ms timestamp when set,
// otherwise the supplied processing time.
func (p StatusPayload) ReportedAt(now time.Time) time.Time {
	if p.Timestamp > 0 {
		return time.UnixMilli(p.Timestamp).UTC()
	}
	return now.UTC()
}

// Severity levels a rack may attach to an error report.
const (
	SeverityInfo     = "INFO"
	SeverityWarning  = "WARNING"
	SeverityCritical = "CRITICAL"
)

// ErrorPayload is a decoded device fault report.
type ErrorPayload struct {
	Code     string `json:"code" validate:"required"`
	Message  string `json:"message" validate:"required"`
	Severity string `json:"severity" validate:"required,oneof=INFO WARNING CRITICAL"`
}

// WateringCommand drives the pump channel. Duration is echoed in ms
// and only meaningful for start.
type WateringCommand struct {
	Action     string `json:"action"`
	DurationMs int    `json:"duration,omitempty"`
}

// LightingCommand drives the grow-light channel.
type LightingCommand struct {
	Action string `json:"action"`
}

// SensorsCommand requests an immediate out-of-cycle sample.
type SensorsCommand struct {
	Action string `json:"action"`
}

// SensorsReadAction is the only verb the sensors channel understands.
const SensorsReadAction = "read"

// DecodeTelemetry parses and validates a sensors payload.
func DecodeTelemetry(raw []byte) (TelemetryPayload, error) {
	var p TelemetryPayload
	if err := decodeAliased(raw, telemetryAliases, &p); err != nil {
		return TelemetryPayload{}, err
	}
	return p, nil
}

// DecodeStatus parses and validates a status payload.
func DecodeStatus(raw []byte) (StatusPayload, error) {
	var p StatusPayload
	if err := decodeAliased(raw, statusAliases, &p); err != nil {
		return StatusPayload{}, err
	}
	return p, nil
}

// DecodeError parses and validates an error payload.
func DecodeError(raw []byte) (ErrorPayload, error) {
	var p ErrorPayload
	if err := decodeAliased(raw, errorAliases, &p); err != nil {
		return ErrorPayload{}, err
	}
	return p, nil
}

// decodeAliased unmarshals raw JSON, folds compact aliases onto their
// canonical keys (canonical wins when both appear), and validates the
// result. Every violated constraint is reported, not just the first.
func decodeAliased(raw []byte, aliases map[string]string, dst any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "malformed payload", err)
	}
	for alias, canonical := range aliases {
		v, ok := fields[alias]
		if !ok {
			continue
		}
		if _, exists := fields[canonical]; !exists {
			fields[canonical] = v
		}
		delete(fields, alias)
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "remarshal payload", err)
	}
	if err := json.Unmarshal(merged, dst); err != nil {
		return apperr.Wrap(apperr.KindBadRequest, "malformed payload", err)
	}

	return validateStruct(dst)
}

// validateStruct runs the shared validator and flattens all field
// violations into one aggregated bad-request error.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.KindBadRequest, "payload validation", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
	}

	return apperr.New(apperr.KindBadRequest, "invalid payload: "+strings.Join(msgs, "; "))
}
