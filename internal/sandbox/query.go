package sandbox

import (
	"encoding/json"

	"github.com/PaesslerAG/jsonpath"
)

// QueryReport runs a JSONPath expression (e.g. "$.IOCs[?(@.Type=='ip')].Value")
// against an assembled DynamicReport, letting callers pull arbitrary
// slices out of the report document without a bespoke accessor for
// every shape a consumer might want.
func QueryReport(report interface{}, path string) (interface{}, error) {
	b, err := json.Marshal(report)
	if err != nil {
		return nil, err
	}
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return jsonpath.Get(path, v)
}
