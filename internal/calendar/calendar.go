//
// Date: 2026-02-16
// Copyright (c) 2026. All rights reserved.
//

// Package calendar is the market-hours oracle (C7): a pure function
// over US/Eastern civil time that decides which trading day's EOD
// data should currently be considered "latest." It is holiday-unaware
// by design (see SPEC_FULL.md §9).
package calendar

import "time"

// marketCloseHour is the US equity market close, 4:00pm Eastern.
const marketCloseHour = 16

// eastern loads America/New_York lazily; tzdata for it is expected to
// be available in the deployment environment (the teacher's own
// timestamp handling assumes a populated tzdata database too).
func eastern() (*time.Location, error) {
	return time.LoadLocation("America/New_York")
}

// LatestTradingDate returns the most recent trading day whose EOD data
// should be considered complete, evaluated at now:
//
//   - On a weekday before market close (16:00 Eastern), the latest
//     complete session is the previous weekday.
//   - On a weekday at or after market close, today is complete.
//   - On a weekend, the latest complete session is the preceding
//     Friday.
//
// Exchange holidays are not modeled: a holiday is treated as an
// ordinary weekday, matching the explicit scope decision in
// SPEC_FULL.md §9.
func LatestTradingDate(now time.Time) (time.Time, error) {
	loc, err := eastern()
	if err != nil {
		return time.Time{}, err
	}

	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch today.Weekday() {
	case time.Saturday:
		return today.AddDate(0, 0, -1), nil
	case time.Sunday:
		return today.AddDate(0, 0, -2), nil
	default:
		if local.Hour() >= marketCloseHour {
			return today, nil
		}
		return previousWeekday(today), nil
	}
}

// previousWeekday returns the most recent weekday strictly before d,
// skipping over a weekend.
func previousWeekday(d time.Time) time.Time {
	prev := d.AddDate(0, 0, -1)
	switch prev.Weekday() {
	case time.Sunday:
		return prev.AddDate(0, 0, -2)
	case time.Saturday:
		return prev.AddDate(0, 0, -1)
	default:
		return prev
	}
}

// IsMarketOpen reports whether now falls within regular US equity
// trading hours (9:30am-4:00pm Eastern, Monday-Friday). Exchange
// holidays are not modeled.
func IsMarketOpen(now time.Time) (bool, error) {
	loc, err := eastern()
	if err != nil {
		return false, err
	}

	local := now.In(loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false, nil
	}

	open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), marketCloseHour, 0, 0, 0, loc)

	return !local.Before(open) && local.Before(close), nil
}
