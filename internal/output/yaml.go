package output

import (
	"gopkg.in/yaml.v3"
)

// YAMLFormatter renders reports as YAML.
type YAMLFormatter struct{}

type yamlReport struct {
	Healthy bool    `yaml:"healthy"`
	Checks  []Check `yaml:"checks"`
}

// FormatReport renders a report as YAML.
func (f *YAMLFormatter) FormatReport(report *Report) (string, error) {
	if report == nil {
		return "", nil
	}

	data, err := yaml.Marshal(yamlReport{Healthy: report.Healthy(), Checks: report.Checks})
	if err != nil {
		return "", err
	}
	return string(data), nil
}
