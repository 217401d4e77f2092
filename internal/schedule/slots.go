package schedule

// Slot is a discrete bookable window derived from a template for a
// specific date.
type Slot struct {
	Start    MinuteOfDay
	End      MinuteOfDay
	Capacity int
}

// SlotAvailability is a Slot annotated with remaining capacity for a
// point-in-time availability snapshot.
type SlotAvailability struct {
	Slot
	Remaining int
	Available bool
}

// GenerateSlots expands the active templates for one day of week into
// the ordered candidate slots for that day. Templates are walked in
// StartMinute order; a trailing window shorter than the slot duration
// is dropped rather than emitted as a partial slot.
func GenerateSlots(templates []TimeTemplate) []Slot {
	var slots []Slot

	for _, t := range templates {
		if !t.IsActive {
			continue
		}
		dur := MinuteOfDay(t.SlotDurationMinutes)
		for start := t.StartMinute; start+dur <= t.EndMinute; start += dur {
			slots = append(slots, Slot{
				Start:    start,
				End:      start + dur,
				Capacity: t.MaxConcurrent,
			})
		}
	}

	return slots
}

// ComputeAvailability annotates each candidate slot with remaining
// capacity given the count of existing non-cancelled appointments per
// start minute. Pure snapshot; it reserves nothing.
func ComputeAvailability(slots []Slot, bookedByStart map[MinuteOfDay]int) []SlotAvailability {
	out := make([]SlotAvailability, 0, len(slots))

	for _, s := range slots {
		remaining := s.Capacity - bookedByStart[s.Start]
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, SlotAvailability{
			Slot:      s,
			Remaining: remaining,
			Available: remaining > 0,
		})
	}

	return out
}

// MatchTemplate returns the first active template whose window covers
// the requested start minute, or nil. Callers pass the templates for
// the target date's day of week.
func MatchTemplate(templates []TimeTemplate, start MinuteOfDay) *TimeTemplate {
	for i := range templates {
		t := &templates[i]
		if t.IsActive && t.Covers(start) {
			return t
		}
	}
	return nil
}
