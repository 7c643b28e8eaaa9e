package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Candle represents a single OHLCV bar. TS is the bar's open time in
// milliseconds since epoch and is the candle's identity.
type Candle struct {
	TS     int64   `json:"ts"`
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume int64   `json:"v"`
}

// Time returns the open time of the candle.
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.TS)
}

// Valid reports whether the candle can enter a history.
func (c Candle) Valid() bool {
	return c.TS > 0 && c.Volume >= 0
}

// UnmarshalJSON accepts ts as integer milliseconds, a numeric string or an
// RFC 3339 timestamp, and prices and v as numbers or numeric strings. A
// candle with a field it cannot read decodes as the zero Candle, which is
// not Valid, so one bad bar never fails the whole snapshot.
func (c *Candle) UnmarshalJSON(data []byte) error {
	*c = Candle{}
	r := gjson.ParseBytes(data)
	if !r.IsObject() {
		return nil
	}

	var vals [5]float64
	for i, key := range [...]string{"o", "h", "l", "c", "v"} {
		v, ok := number(r.Get(key))
		if !ok {
			return nil
		}
		vals[i] = v
	}
	ts, err := parseMillis(json.RawMessage(r.Get("ts").Raw))
	if err != nil {
		return nil
	}

	*c = Candle{
		TS:     ts,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: int64(vals[4]),
	}
	return nil
}

// number reads a JSON number or a numeric string. Missing and null fields
// read as 0.
func number(r gjson.Result) (float64, bool) {
	switch r.Type {
	case gjson.Null:
		return 0, true
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		str := strings.TrimSpace(r.Str)
		if str == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(str, 64)
		return f, err == nil
	}
	return 0, false
}

func str(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

// parseMillis decodes a timestamp that is either a JSON number of
// milliseconds, a string holding such a number, or an RFC 3339 string.
func parseMillis(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		if s == "" {
			return 0, nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, err
		}
		return t.UnixMilli(), nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
