package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"sales-dashboard/internal/models"
)

// YearSelector restricts a dataset to one year or passes it through. The
// zero value selects all years.
type YearSelector struct {
	year     int
	specific bool
}

func AllYears() YearSelector {
	return YearSelector{}
}

func SpecificYear(year int) YearSelector {
	return YearSelector{year: year, specific: true}
}

// Year reports the selected year and whether one is selected at all.
func (s YearSelector) Year() (int, bool) {
	return s.year, s.specific
}

func (s YearSelector) String() string {
	if !s.specific {
		return "all"
	}
	return strconv.Itoa(s.year)
}

// ParseYearSelector accepts "", "all" or "Sin agrupar" for all years and a
// four digit year otherwise.
func ParseYearSelector(raw string) (YearSelector, error) {
	v := strings.TrimSpace(raw)
	switch strings.ToLower(v) {
	case "", "all", "sin agrupar":
		return AllYears(), nil
	}
	year, err := strconv.Atoi(v)
	if err != nil || year < 1000 || year > 9999 {
		return YearSelector{}, fmt.Errorf("invalid year selector %q", raw)
	}
	return SpecificYear(year), nil
}

func Filter(ds models.Dataset, sel YearSelector) models.Dataset {
	year, ok := sel.Year()
	if !ok {
		return ds
	}
	return ds.Where(func(tx models.Transaction) bool {
		return tx.Year == year
	})
}
