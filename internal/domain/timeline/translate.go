// Package timeline merges locally logged actions with events pushed by a
// paired device into one chronological action log.
package timeline

import (
	"fmt"
	"strconv"

	"github.com/okian/akut/internal/domain/model"
)

// Device event types known to the default translation table.
const (
	EventSat            = "DEFIB_SAT"
	EventNIBP           = "DEFIB_NIBP"
	EventBS             = "DEFIB_BS"
	EventTemp           = "DEFIB_TEMP"
	EventEtCO2          = "DEFIB_ETCO2"
	EventEKG4           = "DEFIB_EKG4"
	EventEKG12          = "DEFIB_EKG12"
	EventCharge         = "DEFIB_CHARGE"
	EventShock          = "DEFIB_SHOCK"
	EventAnalyze        = "DEFIB_ANALYZE"
	EventRhythmCallout  = "DEFIB_RHYTHM_CALLOUT"
	EventROSC           = "DEFIB_ROSC"
	EventStripShared    = "DEFIB_STRIP_SHARED"
	externalStateID     = "external"
	missingPayloadValue = "—"
)

// DefaultActionMap maps device event types to clinical action ids.
// Types missing from the map pass through unchanged.
func DefaultActionMap() map[string]string {
	return map[string]string{
		EventSat:    "B_SPO2_MEASURE",
		EventNIBP:   "C_BP_MEASURE",
		EventBS:     "D_BGL_CHECK",
		EventTemp:   "E_TEMPERATURE_ASSESS",
		EventEtCO2:  "B_ETCO2_MEASURE",
		EventEKG4:   "C_ECG_4_12_LEAD",
		EventEKG12:  "C_ECG_4_12_LEAD",
		EventCharge: EventCharge,
		EventShock:  EventShock,
	}
}

// Translator converts session events into action log entries.
type Translator struct {
	actions map[string]string
}

// NewTranslator builds a translator over a copy of actions.
func NewTranslator(actions map[string]string) *Translator {
	t := &Translator{actions: make(map[string]string, len(actions))}
	for k, v := range actions {
		t.actions[k] = v
	}
	return t
}

// ActionID returns the clinical action id for an event type and whether
// the type was found in the table.
func (t *Translator) ActionID(eventType string) (string, bool) {
	id, ok := t.actions[eventType]
	if !ok {
		return eventType, false
	}
	return id, true
}

// Translate converts one event. It never fails: a malformed payload only
// degrades the description.
func (t *Translator) Translate(ev model.SessionEvent) model.ActionLogEntry {
	actionID, _ := t.ActionID(ev.Type)

	source := ev.Source
	if source == "" {
		source = model.SourceDefib
	}

	var payload any
	if ev.Payload != nil {
		payload = ev.Payload
	}

	return model.ActionLogEntry{
		ID:               fmt.Sprintf("EV_%s_%d", ev.Type, ev.TRelMs),
		TimeMs:           ev.TRelMs,
		ActionID:         actionID,
		Description:      Describe(ev),
		ResultingStateID: externalStateID,
		Meta: map[string]any{
			"source":       source,
			"originalType": ev.Type,
			"payload":      payload,
		},
	}
}

// Describe renders a human readable line for a device event.
func Describe(ev model.SessionEvent) string {
	p := ev.Payload
	switch ev.Type {
	case EventNIBP:
		return fmt.Sprintf("Defib NIBP: %s/%s", value(p, "btSys"), value(p, "btDia"))
	case EventSat:
		return fmt.Sprintf("Defib SAT: SpO₂ %s%% · Pulse %s/min", value(p, "spo2"), value(p, "hr"))
	case EventEtCO2:
		return fmt.Sprintf("Defib EtCO₂: %s kPa", value(p, "etco2"))
	case EventBS:
		return fmt.Sprintf("Defib BS: %s mmol/L", value(p, "bs"))
	case EventTemp:
		return fmt.Sprintf("Defib Temp: %s °C", value(p, "temp"))
	case EventEKG4:
		return "Defib EKG4 acquired"
	case EventEKG12:
		return "Defib EKG12 acquired"
	case EventCharge:
		return "Defib CHARGE"
	case EventShock:
		return "Defib SHOCK"
	default:
		return "Defib event: " + ev.Type
	}
}

func value(p map[string]any, key string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return missingPayloadValue
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return missingPayloadValue
		}
		return s
	}
	if f, ok := model.Number(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	return missingPayloadValue
}
