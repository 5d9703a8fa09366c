package star

import (
	"time"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/coerce"
)

// DimDate is a dim_date row. Every attribute is a pure function of FullDate.
type DimDate struct {
	DateKey   int32
	FullDate  time.Time
	Year      int16
	Month     int16
	Day       int16
	DayOfWeek int16 // ISO 8601: Monday=1 .. Sunday=7
	IsWeekday bool
}

// DateKey is the YYYYMMDD surrogate key of d's calendar day.
func DateKey(d time.Time) int32 {
	y, m, day := d.Date()
	return int32(y*10000 + int(m)*100 + day)
}

// ResolveDate derives the date dimension row for d's calendar day.
func ResolveDate(d time.Time) DimDate {
	full := coerce.DateOnly(d)
	y, m, day := full.Date()
	dow := isoWeekday(full.Weekday())
	return DimDate{
		DateKey:   DateKey(full),
		FullDate:  full,
		Year:      int16(y),
		Month:     int16(m),
		Day:       int16(day),
		DayOfWeek: dow,
		IsWeekday: dow <= 5,
	}
}

func isoWeekday(w time.Weekday) int16 {
	if w == time.Sunday {
		return 7
	}
	return int16(w)
}
