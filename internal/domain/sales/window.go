package sales

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/medivision/medivision/internal/platform/apperr"
)

// Window bounds a query on sale creation time. From is inclusive, To
// exclusive; nil means unbounded.
type Window struct {
	From *time.Time
	To   *time.Time
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// ParseWindow reads optional start and end dates in any layout dateparse
// understands. An end given as a bare date includes that whole day.
func ParseWindow(start, end string, loc *time.Location) (Window, error) {
	var w Window
	if start = strings.TrimSpace(start); start != "" {
		t, err := dateparse.ParseIn(start, loc)
		if err != nil {
			return w, apperr.Validation("startDate %q is not a valid date", start)
		}
		w.From = &t
	}
	if end = strings.TrimSpace(end); end != "" {
		t, err := dateparse.ParseIn(end, loc)
		if err != nil {
			return w, apperr.Validation("endDate %q is not a valid date", end)
		}
		if isMidnight(t.In(loc)) {
			t = t.AddDate(0, 0, 1)
		}
		w.To = &t
	}
	if w.From != nil && w.To != nil && !w.From.Before(*w.To) {
		return w, apperr.Validation("startDate must be before endDate")
	}
	return w, nil
}
