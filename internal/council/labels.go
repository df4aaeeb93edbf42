package council

import (
	"encoding/json"
	"sort"
)

// LabelPrefix starts every anonymization label.
const LabelPrefix = "Response "

// Label returns the anonymization label for the k-th (0-indexed) shuffled
// response: "Response A" through "Response Z", then "Response AA", "Response AB", ...
func Label(k int) string {
	var letters []byte
	for k >= 0 {
		letters = append([]byte{byte('A' + k%26)}, letters...)
		k = k/26 - 1
	}
	return LabelPrefix + string(letters)
}

// LabelMap maps anonymization labels to the models behind them. It is built
// once per deliberation and never modified afterwards.
type LabelMap struct {
	labels []string
	models []string
	index  map[string]int
}

// NewLabelMap assigns Label(k) to models[k].
func NewLabelMap(models []string) LabelMap {
	m := LabelMap{
		labels: make([]string, len(models)),
		models: make([]string, len(models)),
		index:  make(map[string]int, len(models)),
	}
	copy(m.models, models)
	for k := range models {
		m.labels[k] = Label(k)
		m.index[m.labels[k]] = k
	}
	return m
}

// Len returns the number of labels.
func (m LabelMap) Len() int { return len(m.labels) }

// Labels returns the labels in assignment order.
func (m LabelMap) Labels() []string {
	out := make([]string, len(m.labels))
	copy(out, m.labels)
	return out
}

// Models returns the models in label order.
func (m LabelMap) Models() []string {
	out := make([]string, len(m.models))
	copy(out, m.models)
	return out
}

// Model returns the model behind label.
func (m LabelMap) Model(label string) (string, bool) {
	k, ok := m.index[label]
	if !ok {
		return "", false
	}
	return m.models[k], true
}

// Label returns the first label assigned to model.
func (m LabelMap) Label(model string) (string, bool) {
	for k, candidate := range m.models {
		if candidate == model {
			return m.labels[k], true
		}
	}
	return "", false
}

// Map returns the label to model mapping.
func (m LabelMap) Map() map[string]string {
	out := make(map[string]string, len(m.labels))
	for k, label := range m.labels {
		out[label] = m.models[k]
	}
	return out
}

// MarshalJSON encodes the map as a JSON object of label to model.
func (m LabelMap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

// UnmarshalJSON decodes a JSON object of label to model, restoring label order.
func (m *LabelMap) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	labels := make([]string, 0, len(raw))
	for label := range raw {
		labels = append(labels, label)
	}
	// shorter labels first keeps Z before AA
	sort.Slice(labels, func(i, j int) bool {
		if len(labels[i]) != len(labels[j]) {
			return len(labels[i]) < len(labels[j])
		}
		return labels[i] < labels[j]
	})

	*m = LabelMap{
		labels: labels,
		models: make([]string, len(labels)),
		index:  make(map[string]int, len(labels)),
	}
	for k, label := range labels {
		m.models[k] = raw[label]
		m.index[label] = k
	}
	return nil
}
