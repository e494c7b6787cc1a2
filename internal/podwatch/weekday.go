package podwatch

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"sun":       time.Sunday,
	"monday":    time.Monday,
	"mon":       time.Monday,
	"tuesday":   time.Tuesday,
	"tue":       time.Tuesday,
	"wednesday": time.Wednesday,
	"wed":       time.Wednesday,
	"thursday":  time.Thursday,
	"thu":       time.Thursday,
	"friday":    time.Friday,
	"fri":       time.Friday,
	"saturday":  time.Saturday,
	"sat":       time.Saturday,

	// The catalog this started from names days in Portuguese.
	"domingo":       time.Sunday,
	"segunda":       time.Monday,
	"segunda-feira": time.Monday,
	"terça":         time.Tuesday,
	"terça-feira":   time.Tuesday,
	"terca":         time.Tuesday,
	"quarta":        time.Wednesday,
	"quarta-feira":  time.Wednesday,
	"quinta":        time.Thursday,
	"quinta-feira":  time.Thursday,
	"sexta":         time.Friday,
	"sexta-feira":   time.Friday,
	"sábado":        time.Saturday,
	"sabado":        time.Saturday,
}

// ParseWeekday accepts English names (full or three letter) and Portuguese names.
func ParseWeekday(s string) (time.Weekday, error) {
	key := cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
	if d, ok := weekdayNames[key]; ok {
		return d, nil
	}

	return 0, fmt.Errorf("unknown weekday %q", s)
}
