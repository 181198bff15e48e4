package mission

import (
	"mime/multipart"
	"slices"
	"sort"
	"time"
)

// Form field names shared by the sidebar form and the backend.
const (
	FieldStartLat        = "start-lat"
	FieldStartLon        = "start-lon"
	FieldEndLat          = "end-lat"
	FieldEndLon          = "end-lon"
	FieldPersonnel       = "personnel"
	FieldTargetTimeOnObj = "target-time-on-obj"
	FieldStrategy        = "strategy"
	FieldObjective       = "objective"
	FieldResistance      = "resistance"
	FieldLatestDate      = "latest-date"
	FieldContext         = "context"
	FieldAPIKey          = "openai-api-key"
	FieldModel           = "openai-model"
)

var namedFields = []string{
	FieldStartLat, FieldStartLon, FieldEndLat, FieldEndLon,
	FieldPersonnel, FieldTargetTimeOnObj, FieldStrategy, FieldObjective,
	FieldResistance, FieldLatestDate, FieldContext, FieldAPIKey, FieldModel,
}

// Resistances are the expected-resistance choices, value then label.
var Resistances = [][2]string{
	{"none", "None"},
	{"low", "Low"},
	{"med", "Medium"},
	{"high", "High"},
}

// Models are the selectable AI models, value then label.
var Models = [][2]string{
	{"gpt-4", "GPT-4"},
	{"gpt-3.5-turbo", "GPT-3.5-Turbo"},
}

// LatestDateWindow is how far ahead the latest-date field may go.
const LatestDateWindow = 5 * 24 * time.Hour

// FormSubmission is the sidebar form as submitted. Values are passed through
// untouched; the form inputs carry the only validation.
type FormSubmission struct {
	Vehicles []string
	Fields   map[string]string
}

// Get returns a named field value.
func (f FormSubmission) Get(name string) string {
	return f.Fields[name]
}

// ParseForm builds a submission from posted form values. Any key that is not
// a named field is a vehicle checkbox; presence means selected. Vehicles are
// ordered as in the option list, unknown ids follow sorted.
func ParseForm(values map[string][]string, vehicles []VehicleOption) FormSubmission {
	f := FormSubmission{Fields: make(map[string]string, len(namedFields))}
	for _, name := range namedFields {
		if v, ok := values[name]; ok && len(v) > 0 {
			f.Fields[name] = v[0]
		} else {
			f.Fields[name] = ""
		}
	}

	seen := map[string]bool{}
	for _, v := range vehicles {
		if _, ok := values[v.ID]; ok {
			f.Vehicles = append(f.Vehicles, v.ID)
			seen[v.ID] = true
		}
	}
	var extra []string
	for key := range values {
		if seen[key] || slices.Contains(namedFields, key) {
			continue
		}
		extra = append(extra, key)
	}
	sort.Strings(extra)
	f.Vehicles = append(f.Vehicles, extra...)
	return f
}

// WriteMultipart writes every field into w: selected vehicles as "on", then
// the named fields in a fixed order, empty values included.
func (f FormSubmission) WriteMultipart(w *multipart.Writer) error {
	for _, id := range f.Vehicles {
		if err := w.WriteField(id, "on"); err != nil {
			return err
		}
	}
	for _, name := range namedFields {
		if err := w.WriteField(name, f.Fields[name]); err != nil {
			return err
		}
	}
	return nil
}

// LatestDateBounds returns the ISO date range accepted by the latest-date
// input: today through today plus LatestDateWindow.
func LatestDateBounds(now time.Time) (earliest, latest string) {
	return now.Format(time.DateOnly), now.Add(LatestDateWindow).Format(time.DateOnly)
}
