package timeslot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SlotDuration is the width of every bookable slot.
const SlotDuration = 30 * time.Minute

// Working-day boundaries. The 13:00-14:00 gap is the lunch break and is
// never part of the bookable catalog.
var (
	MorningStart   = At(8, 0)
	MorningEnd     = At(13, 0)
	AfternoonStart = At(14, 0)
	AfternoonEnd   = At(17, 0)

	LunchStart = At(13, 0)
	LunchEnd   = At(14, 0)
)

// TimeOfDay is a wall-clock time expressed as minutes since midnight.
// It has no date or timezone attached.
type TimeOfDay int

// At builds a TimeOfDay from an hour and minute.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// Parse parses "HH:MM" into a TimeOfDay. Minutes must be two digits;
// anything beyond the two fields is rejected.
func Parse(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return 0, fmt.Errorf("time of day %q must be HH:MM", s)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return At(hour, minute), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) Add(d time.Duration) TimeOfDay {
	return t + TimeOfDay(d/time.Minute)
}

func (t TimeOfDay) Before(other TimeOfDay) bool { return t < other }
func (t TimeOfDay) After(other TimeOfDay) bool  { return t > other }

// Minutes returns the value as minutes since midnight, the form it is
// persisted in.
func (t TimeOfDay) Minutes() int { return int(t) }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Slot is a half-open interval [Start, End) within a single day.
// Slots are values, never persisted, recomputed per request.
type Slot struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (s Slot) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

// Overlaps reports whether two half-open intervals intersect. Touching
// endpoints (s.End == other.Start) do not overlap.
func (s Slot) Overlaps(other Slot) bool {
	return s.Start.Before(other.End) && s.End.After(other.Start)
}

// OverlapsLunch reports whether the slot intersects the 13:00-14:00 break.
func (s Slot) OverlapsLunch() bool {
	return s.Overlaps(Slot{Start: LunchStart, End: LunchEnd})
}

// DailyCatalog generates every bookable slot of a working day: the morning
// and afternoon blocks cut into 30-minute steps, ascending by start time.
// The catalog is fixed; callers filter it by professional and date.
func DailyCatalog() []Slot {
	var slots []Slot
	for _, block := range []Slot{
		{Start: MorningStart, End: MorningEnd},
		{Start: AfternoonStart, End: AfternoonEnd},
	} {
		for cur := block.Start; cur.Before(block.End); cur = cur.Add(SlotDuration) {
			slots = append(slots, Slot{Start: cur, End: cur.Add(SlotDuration)})
		}
	}
	return slots
}

// SplitRange decomposes [start, end) into consecutive SlotDuration-wide
// slots by repeated advancement from start.
func SplitRange(start, end TimeOfDay) []Slot {
	var slots []Slot
	for cur := start; cur.Before(end); cur = cur.Add(SlotDuration) {
		slots = append(slots, Slot{Start: cur, End: cur.Add(SlotDuration)})
	}
	return slots
}

// Consecutive reports whether the slots form a gapless chain once sorted by
// start time. A single slot is trivially consecutive; an empty set is not.
func Consecutive(slots []Slot) bool {
	if len(slots) == 0 {
		return false
	}
	if len(slots) == 1 {
		return true
	}

	sorted := make([]Slot, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	for i := 0; i < len(sorted)-1; i++ {
		if sorted[i].End != sorted[i+1].Start {
			return false
		}
	}
	return true
}

// ClearOfLunch reports whether none of the slots intersect the lunch break.
// The catalog never emits lunch slots, but this is re-checked independently
// so the validator also covers externally supplied ranges.
func ClearOfLunch(slots []Slot) bool {
	for _, s := range slots {
		if s.OverlapsLunch() {
			return false
		}
	}
	return true
}

// ValidateSelection runs both booking preconditions over a prospective
// multi-slot selection: contiguity and lunch-break containment.
func ValidateSelection(slots []Slot) error {
	if !Consecutive(slots) {
		return ErrNotConsecutive
	}
	if !ClearOfLunch(slots) {
		return ErrCrossesLunchBreak
	}
	return nil
}
