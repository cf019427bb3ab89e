package fairapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// flexString accepts string or number JSON and stores it as text.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = flexString(num.String())
	return nil
}

// Int parses the text form; empty or non-numeric values yield def.
func (s flexString) Int(def int) int {
	v := strings.TrimSpace(string(s))
	if v == "" {
		return def
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return int(f)
	}
	return def
}

func rawToText(raw json.RawMessage) *string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return &s
		}
	}
	s := string(raw)
	return &s
}

func decodeFairsPage(op string, raw []byte) (*FairsPage, error) {
	var root struct {
		Fairs       *[]Fair    `json:"fairs"`
		TotalPages  flexString `json:"totalPages"`
		CurrentPage flexString `json:"currentPage"`
		TotalCount  flexString `json:"totalCount"`
	}
	if err := decode(op, raw, &root); err != nil {
		return nil, err
	}
	if root.Fairs == nil {
		return nil, fmt.Errorf("%s: missing fairs: %w", op, ErrMalformed)
	}
	return &FairsPage{
		Fairs:       *root.Fairs,
		TotalPages:  root.TotalPages.Int(0),
		CurrentPage: root.CurrentPage.Int(1),
		TotalCount:  root.TotalCount.Int(len(*root.Fairs)),
	}, nil
}

// decodeCategories turns {"1": {"id":1,"name":..,"sub_cities":[..]}, ...} into a slice sorted by id.
func decodeCategories(op string, raw []byte) ([]Category, error) {
	var byID map[string]Category
	if err := decode(op, raw, &byID); err != nil {
		return nil, err
	}
	out := make([]Category, 0, len(byID))
	for key, c := range byID {
		if c.ID == 0 {
			if id, err := strconv.Atoi(key); err == nil {
				c.ID = id
			}
		}
		if c.SubCities == nil {
			c.SubCities = []City{}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func itoa(i int) string { return strconv.Itoa(i) }
