package flatwire

import (
	"fmt"
	"time"
)

// timeExtension handles time.Time values. The payload is an RFC 3339 string
// with nanosecond precision, so timestamps round-trip exactly.
type timeExtension struct{}

var _ Extension = timeExtension{}

func (timeExtension) Name() string { return "time" }

func (timeExtension) Check(v any) bool {
	_, ok := v.(time.Time)
	return ok
}

func (timeExtension) Encode(v any, _ EncodeChild) (any, error) {
	return v.(time.Time).Format(time.RFC3339Nano), nil
}

func (timeExtension) Decode(payload any, _ DecodeChild) (any, error) {
	switch p := payload.(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, p)
		if err != nil {
			return nil, fmt.Errorf("flatwire: invalid time payload %q: %w", p, err)
		}
		return t, nil
	case time.Time:
		// Some wire codecs parse timestamp scalars themselves.
		return p, nil
	default:
		return nil, fmt.Errorf("flatwire: time payload is not a string (%T)", payload)
	}
}
