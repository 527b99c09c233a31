package httpapi

import "encoding/json"

func marshalForCache(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
