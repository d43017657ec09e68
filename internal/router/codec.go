package router

import "encoding/json"

func marshalResult(r TaskResult) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalResult(s string) (TaskResult, error) {
	var r TaskResult
	err := json.Unmarshal([]byte(s), &r)
	return r, err
}
