package core

import (
	"crypto/rand"
	"fmt"
	"strconv"
)

// Generates a random authenticator for access requests
func BuildRandomAuthenticator() [16]byte {
	var authenticator [16]byte
	rand.Read(authenticator[:])
	return authenticator
}

func toInt64(value interface{}) (int64, error) {

	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		// Needed for unmarshaling JSON
		return int64(v), nil
	case float64:
		// Needed for unmarshaling JSON
		return int64(v), nil
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err != nil {
			return 0, err
		} else {
			return i, nil
		}
	default:
		return 0, fmt.Errorf("cannot convert %T %v to int64", value, value)
	}
}
