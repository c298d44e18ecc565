package util

import "encoding/json"

// ConvertStructToJson marshals v for queue payloads and audit logs. Returns
// an empty string when v cannot be marshaled.
func ConvertStructToJson(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
