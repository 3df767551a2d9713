package legal

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/lexharvest/internal/core/domain"
)

var (
	compactDate = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
	dashedDate  = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	dottedDate  = regexp.MustCompile(`^(\d{4})\.(\d{1,2})\.(\d{1,2})\.?$`)
)

// ParseDate accepts YYYYMMDD, YYYY-MM-DD and YYYY.MM.DD and returns a
// calendar date at UTC midnight. Any other shape, or an impossible date,
// fails with *domain.InvalidDateError.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)

	var m []string
	for _, re := range []*regexp.Regexp{compactDate, dashedDate, dottedDate} {
		if m = re.FindStringSubmatch(s); m != nil {
			break
		}
	}
	if m == nil {
		return time.Time{}, &domain.InvalidDateError{Raw: raw}
	}

	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	d, _ := strconv.Atoi(m[3])

	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d {
		return time.Time{}, &domain.InvalidDateError{Raw: raw}
	}
	return t, nil
}
