package payload

import (
	"encoding/json"
	"strings"
)

const customFeaturesField = "custom_features"

// CustomFeatures is either a list of names or one comma-separated string.
type CustomFeatures struct {
	kind kind
	list []string
	csv  string
}

// CustomFeaturesList builds the list alternative.
func CustomFeaturesList(names ...string) CustomFeatures {
	return CustomFeatures{kind: kindList, list: names}
}

// CustomFeaturesString builds the comma-separated alternative.
func CustomFeaturesString(csv string) CustomFeatures {
	return CustomFeatures{kind: kindString, csv: csv}
}

// DecodeCustomFeatures reads the JSON form: an array of strings or a string.
// null or a missing field yields the empty value.
func DecodeCustomFeatures(raw json.RawMessage) (CustomFeatures, error) {
	k, ok := jsonKind(raw)
	if !ok {
		return CustomFeatures{}, errCustomFeaturesShape()
	}
	switch k {
	case kindList:
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			return CustomFeatures{}, errCustomFeaturesShape()
		}
		return CustomFeaturesList(names...), nil
	case kindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return CustomFeatures{}, errCustomFeaturesShape()
		}
		return CustomFeaturesString(s), nil
	}
	return CustomFeatures{}, nil
}

// CustomFeaturesFromForm reads repeated multipart values. A single value is
// a JSON array or the comma-separated form; several values are the list form.
func CustomFeaturesFromForm(values []string) CustomFeatures {
	switch len(values) {
	case 0:
		return CustomFeatures{}
	case 1:
		var names []string
		if strings.HasPrefix(strings.TrimSpace(values[0]), "[") && json.Unmarshal([]byte(values[0]), &names) == nil {
			return CustomFeaturesList(names...)
		}
		return CustomFeaturesString(values[0])
	default:
		return CustomFeaturesList(values...)
	}
}

// Names returns the normalized names: trimmed, with empty entries dropped.
// The result is never nil.
func (c CustomFeatures) Names() []string {
	var raw []string
	switch c.kind {
	case kindList:
		raw = c.list
	case kindString:
		raw = strings.Split(c.csv, ",")
	}
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func errCustomFeaturesShape() *Error {
	return invalid(customFeaturesField, "custom features must be a list or a comma-separated string")
}
