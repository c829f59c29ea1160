package domain

import "time"

func testTime(minutes int) time.Time {
	return time.Date(2025, time.March, 3, 9, minutes, 0, 0, time.UTC)
}
