package cdrwriter

import (
	"fmt"
	"strings"

	"github.com/zonawifi/portero/core"
)

type CSVFormat struct {
	fields             []string
	fieldSeparator     string
	attributeSeparator string
	quoteStrings       bool
}

// fields is the ordered list of attribute names to write, one column each.
// A missing attribute produces an empty column
func NewCSVFormat(fields []string, fieldSeparator string, attributeSeparator string, quoteStrings bool) *CSVFormat {
	return &CSVFormat{
		fields:             fields,
		fieldSeparator:     fieldSeparator,
		attributeSeparator: attributeSeparator,
		quoteStrings:       quoteStrings,
	}
}

func (w *CSVFormat) GetRadiusCDRString(rp *core.RadiusPacket) string {
	var builder strings.Builder

	for i, field := range w.fields {

		avps := rp.GetAllAVP(field)
		if len(avps) > 0 {
			switch avps[0].DictItem.RadiusType {
			case core.RadiusTypeInteger:
				for j := range avps {
					builder.WriteString(fmt.Sprintf("%d", avps[j].GetInt()))
					if j < len(avps)-1 {
						builder.WriteString(w.attributeSeparator)
					}
				}

			default:
				if w.quoteStrings {
					builder.WriteString("\"")
				}
				for j := range avps {
					builder.WriteString(avps[j].GetString())
					if j < len(avps)-1 {
						builder.WriteString(w.attributeSeparator)
					}
				}
				if w.quoteStrings {
					builder.WriteString("\"")
				}
			}
		}

		if i < len(w.fields)-1 {
			builder.WriteString(w.fieldSeparator)
		}
	}

	builder.WriteString("\n")

	return builder.String()
}
