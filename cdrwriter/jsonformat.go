package cdrwriter

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/zonawifi/portero/core"
)

type JSONFormat struct {
	positiveFilter []string
	negativeFilter []string
}

// positiveFilter, if not nil, lists the only attribute names to write.
// negativeFilter, if not nil, lists attribute names to omit
func NewJSONFormat(positiveFilter []string, negativeFilter []string) *JSONFormat {
	return &JSONFormat{
		positiveFilter: positiveFilter,
		negativeFilter: negativeFilter,
	}
}

// Writes the CDR as a one-line JSON object with a generated record id, the
// write timestamp and the filtered attributes
func (w *JSONFormat) GetRadiusCDRString(rp *core.RadiusPacket) string {

	toSerialize := make([]*core.RadiusAVP, 0)

	for i := range rp.AVPs {

		// Apply filters
		if w.positiveFilter != nil && !slices.Contains(w.positiveFilter, rp.AVPs[i].Name) {
			continue
		} else if w.negativeFilter != nil && slices.Contains(w.negativeFilter, rp.AVPs[i].Name) {
			continue
		}

		toSerialize = append(toSerialize, &rp.AVPs[i])
	}

	record := struct {
		Id        string            `json:"id"`
		Timestamp string            `json:"timestamp"`
		AVPs      []*core.RadiusAVP `json:"avps"`
	}{
		Id:        uuid.New().String(),
		Timestamp: time.Now().Format(time.RFC3339),
		AVPs:      toSerialize,
	}

	jsonRecord, _ := json.Marshal(record)
	return string(jsonRecord) + "\n"
}
