package codec

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// YearMonth is a calendar month without a day. It binds as the integer
// year*100+month.
type YearMonth struct {
	Year  int
	Month time.Month
}

func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

// YearMonthFromInt is the inverse of YearMonth.Int.
func YearMonthFromInt(v int64) (YearMonth, error) {
	ym := YearMonth{Year: int(v / 100), Month: time.Month(v % 100)}
	if !ym.IsValid() {
		return YearMonth{}, fmt.Errorf("invalid year-month value %d", v)
	}
	return ym, nil
}

// ParseYearMonth accepts "2006-01" and the integer form "200601".
func ParseYearMonth(s string) (YearMonth, error) {
	s = strings.TrimSpace(s)
	if year, month, ok := strings.Cut(s, "-"); ok {
		y, err := strconv.Atoi(year)
		if err != nil {
			return YearMonth{}, fmt.Errorf("invalid year-month %q: %w", s, err)
		}
		m, err := strconv.Atoi(month)
		if err != nil {
			return YearMonth{}, fmt.Errorf("invalid year-month %q: %w", s, err)
		}
		ym := YearMonth{Year: y, Month: time.Month(m)}
		if !ym.IsValid() {
			return YearMonth{}, fmt.Errorf("invalid year-month %q", s)
		}
		return ym, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid year-month %q: %w", s, err)
	}
	return YearMonthFromInt(v)
}

func (ym YearMonth) Int() int64 {
	return int64(ym.Year)*100 + int64(ym.Month)
}

func (ym YearMonth) IsValid() bool {
	return ym.Month >= time.January && ym.Month <= time.December
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

func (ym YearMonth) MarshalText() ([]byte, error) {
	return []byte(ym.String()), nil
}

func (ym *YearMonth) UnmarshalText(data []byte) error {
	v, err := ParseYearMonth(string(data))
	if err != nil {
		return err
	}
	*ym = v
	return nil
}
