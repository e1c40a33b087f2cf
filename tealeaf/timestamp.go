package tealeaf

import (
	"fmt"
	"strings"
)

// Calendar conversion uses Howard Hinnant's days_from_civil /
// civil_from_days algorithms over the proleptic Gregorian calendar, so
// the codec has no dependency on the local timezone database.

// daysFromCivil returns the number of days between 1970-01-01 and the
// given civil date.
func daysFromCivil(year int, month, day int) int64 {
	y := int64(year)
	m := int64(month)
	d := int64(day)

	if m <= 2 {
		y--
	}

	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}

	yoe := y - era*400
	mp := m + 9
	if m > 2 {
		mp = m - 3
	}

	doy := (153*mp+2)/5 + d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy

	return era*146097 + doe - 719468
}

// civilFromDays is the inverse of daysFromCivil.
func civilFromDays(days int64) (year int, month, day int) {
	z := days + 719468

	era := z / 146097
	if z < 0 && z%146097 != 0 {
		era--
	}

	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d := doy - (153*mp+2)/5 + 1

	m := mp + 3
	if mp >= 10 {
		m = mp - 9
	}

	if m <= 2 {
		y++
	}

	return int(y), int(m), int(d)
}

// parseISO8601 parses YYYY-MM-DD[THH:MM:SS[.fff][Z|±HH:MM]] into Unix
// milliseconds plus the numeric timezone offset in minutes (0 when
// absent or Z). Sub-second digits beyond three are truncated; fewer are
// zero-padded.
func parseISO8601(s string) (millis int64, tzMinutes int16, err error) {
	if len(s) < 10 || s[4] != '-' || s[7] != '-' {
		return 0, 0, fmt.Errorf("malformed date %q", s)
	}

	year, err := parseDigits(s[0:4])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed year in %q", s)
	}

	month, err := parseDigits(s[5:7])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("malformed month in %q", s)
	}

	day, err := parseDigits(s[8:10])
	if err != nil || day < 1 || day > 31 {
		return 0, 0, fmt.Errorf("malformed day in %q", s)
	}

	var hour, minute, second, ms int
	var tz int

	rest := s[10:]
	if rest != "" {
		if rest[0] != 'T' {
			return 0, 0, fmt.Errorf("malformed time separator in %q", s)
		}

		rest = rest[1:]
		if len(rest) < 5 || rest[2] != ':' {
			return 0, 0, fmt.Errorf("malformed time in %q", s)
		}

		hour, err = parseDigits(rest[0:2])
		if err != nil || hour > 23 {
			return 0, 0, fmt.Errorf("malformed hour in %q", s)
		}

		minute, err = parseDigits(rest[3:5])
		if err != nil || minute > 59 {
			return 0, 0, fmt.Errorf("malformed minute in %q", s)
		}

		rest = rest[5:]
		if len(rest) >= 3 && rest[0] == ':' {
			second, err = parseDigits(rest[1:3])
			if err != nil || second > 60 {
				return 0, 0, fmt.Errorf("malformed second in %q", s)
			}

			rest = rest[3:]
		}

		if rest != "" && rest[0] == '.' {
			rest = rest[1:]

			n := 0
			for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
				n++
			}

			if n == 0 {
				return 0, 0, fmt.Errorf("malformed fraction in %q", s)
			}

			frac := rest[:n]
			rest = rest[n:]

			// Normalise to milliseconds: pad short fractions, truncate
			// beyond three digits.
			switch {
			case len(frac) > 3:
				frac = frac[:3]
			case len(frac) < 3:
				frac += strings.Repeat("0", 3-len(frac))
			}

			ms, err = parseDigits(frac)
			if err != nil {
				return 0, 0, fmt.Errorf("malformed fraction in %q", s)
			}
		}

		switch {
		case rest == "" || rest == "Z":
		case rest[0] == '+' || rest[0] == '-':
			sign := 1
			if rest[0] == '-' {
				sign = -1
			}

			body := rest[1:]
			if len(body) < 5 || body[2] != ':' {
				return 0, 0, fmt.Errorf("malformed timezone in %q", s)
			}

			tzh, herr := parseDigits(body[0:2])
			tzm, merr := parseDigits(body[3:5])
			if herr != nil || merr != nil || tzh > 23 || tzm > 59 {
				return 0, 0, fmt.Errorf("malformed timezone in %q", s)
			}

			tz = sign * (tzh*60 + tzm)
		default:
			return 0, 0, fmt.Errorf("malformed timezone in %q", s)
		}
	}

	days := daysFromCivil(year, month, day)
	secs := days*86400 + int64(hour)*3600 + int64(minute)*60 + int64(second) - int64(tz)*60

	return secs*1000 + int64(ms), int16(tz), nil
}

// formatISO8601 renders Unix milliseconds as canonical ISO-8601 UTC:
// YYYY-MM-DDTHH:MM:SSZ, or with .fff when the millisecond component is
// non-zero.
func formatISO8601(millis int64) string {
	secs := millis / 1000
	ms := millis % 1000

	if ms < 0 {
		ms += 1000
		secs--
	}

	days := secs / 86400
	tod := secs % 86400

	if tod < 0 {
		tod += 86400
		days--
	}

	year, month, day := civilFromDays(days)
	hour := tod / 3600
	minute := (tod % 3600) / 60
	second := tod % 60

	if ms > 0 {
		return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d.%03dZ",
			year, month, day, hour, minute, second, ms)
	}

	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02dZ",
		year, month, day, hour, minute, second)
}

// parseDigits parses an all-digit decimal string.
func parseDigits(s string) (int, error) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit %q", c)
		}

		n = n*10 + int(c-'0')
	}

	return n, nil
}
