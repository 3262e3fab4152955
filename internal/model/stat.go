package model

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Stat is a statistic that may be undefined for a degenerate cohort. The
// zero value is UndefinedStatistic, which is distinct from a computed zero.
type Stat struct {
	Value float64
	Valid bool
}

// UndefinedStatistic marks a statistic that cannot be computed.
var UndefinedStatistic = Stat{}

// Defined wraps a computed value.
func Defined(v float64) Stat {
	return Stat{Value: v, Valid: true}
}

// String renders the value with two decimals, or "n/a".
func (s Stat) String() string {
	if !s.Valid {
		return "n/a"
	}
	return strconv.FormatFloat(s.Value, 'f', 2, 64)
}

// MarshalJSON encodes an undefined statistic as null.
func (s Stat) MarshalJSON() ([]byte, error) {
	if !s.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// UnmarshalJSON decodes null as UndefinedStatistic.
func (s *Stat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = UndefinedStatistic
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Defined(v)
	return nil
}

// Stanine is a 1-9 standard score bucket. Zero means undefined.
type Stanine int

// stanineCuts are the z-score boundaries between consecutive stanines.
var stanineCuts = [8]float64{-1.75, -1.25, -0.75, -0.25, 0.25, 0.75, 1.25, 1.75}

var stanineLetters = [10]string{"", "F-", "F", "E", "D", "C", "B", "A", "S", "S+"}

// StanineFromZ maps a z-score onto the stanine scale. A z-score equal to a
// cut point falls in the upper bucket.
func StanineFromZ(z Stat) Stanine {
	if !z.Valid {
		return 0
	}
	s := 1
	for _, cut := range stanineCuts {
		if z.Value >= cut {
			s++
		}
	}
	return Stanine(s)
}

// Valid reports whether the stanine was computed.
func (s Stanine) Valid() bool {
	return s >= 1 && s <= 9
}

// Letter returns the letter grade of the bucket (F- lowest, S+ highest).
func (s Stanine) Letter() string {
	if !s.Valid() {
		return "n/a"
	}
	return stanineLetters[s]
}

func (s Stanine) String() string {
	if !s.Valid() {
		return "n/a"
	}
	return strconv.Itoa(int(s))
}

// MarshalJSON encodes an undefined stanine as null.
func (s Stanine) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(s))), nil
}

// UnmarshalJSON decodes null as an undefined stanine.
func (s *Stanine) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = 0
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Stanine(v)
	return nil
}
