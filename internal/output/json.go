package output

import (
	"encoding/json"
)

// JSONFormatter renders reports as JSON.
type JSONFormatter struct {
	Indent bool
}

type jsonReport struct {
	*Report
	Healthy bool `json:"healthy"`
}

// FormatReport renders a report as JSON.
func (f *JSONFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}

	var (
		data []byte
		err  error
	)

	doc := jsonReport{Report: report, Healthy: report.Healthy()}
	if f.Indent {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
