package processing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var errEmptyValue = errors.New("empty value")

// Accepted producer timestamp layouts, tried in order.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	time.RFC3339Nano,
}

func ValidateDate(date string) (time.Time, error) {
	var errs []error

	for _, layout := range timestampLayouts {
		ret, err := time.Parse(layout, date)
		if err == nil {
			return ret.UTC(), nil
		}

		errs = append(errs, err)
	}

	return time.Time{}, fmt.Errorf("failed to parse time: %w", errors.Join(errs...))
}

// RequireString trims value and fails when nothing is left.
func RequireString(value string) (string, error) {
	ret := strings.TrimSpace(value)
	if ret == "" {
		return "", errEmptyValue
	}

	return ret, nil
}
