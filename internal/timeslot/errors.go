package timeslot

import "errors"

var (
	ErrNotConsecutive    = errors.New("selected time slots are not consecutive")
	ErrCrossesLunchBreak = errors.New("selected time slots cross the lunch break")
)
