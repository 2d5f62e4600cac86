// Package calendar provides proleptic Gregorian calendar arithmetic that the
// time package does not expose for partial dates.
package calendar

// Weekday returns the day of the week for a proleptic Gregorian date,
// with 0 = Sunday through 6 = Saturday.
//
// The arithmetic is unchecked: month and day are not range validated, so
// malformed input yields a number rather than an error. Years are expected
// to be non-negative.
func Weekday(year, month, day int32) int32 {
	y, m := year, month
	// January and February count as months 13 and 14 of the previous year.
	if m < 3 {
		m += 12
		y--
	}

	k := y % 100
	j := y / 100

	// Zeller's congruence; h = 0 is Saturday.
	h := (day + (13*(m+1))/5 + k + k/4 + j/4 + 5*j) % 7
	return (h + 6) % 7
}
