package ociadapter

import "encoding/json"

// toRowValue converts a domain struct into the map[string]interface{}
// shape nosql.PutRowDetails.Value expects, reusing the struct's own
// json tags rather than hand-writing a second field mapping.
func toRowValue(v any) (map[string]interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// fromRowValue is toRowValue's inverse, decoding a NoSQL row's value
// map back into a typed struct.
func fromRowValue(m map[string]interface{}, out any) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// keyPart formats one column of a NoSQL composite primary key.
func keyPart(field, value string) string {
	b, _ := json.Marshal(value)
	return field + ":" + string(b)
}

// quoteLiteral escapes a string for interpolation into a NoSQL SQL
// WHERE clause, since the SDK's query request takes a raw statement
// rather than parameterized bind variables for simple equality filters.
func quoteLiteral(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
