package model

import (
	"strings"
	"time"
)

// dayNames maps the short weekday tokens stored in schedules.days_of_week
// to Go weekdays.  Tokens are comma separated, e.g. "Mon,Wed,Fri".
var dayNames = map[string]time.Weekday{
	"Mon": time.Monday,
	"Tue": time.Tuesday,
	"Wed": time.Wednesday,
	"Thu": time.Thursday,
	"Fri": time.Friday,
	"Sat": time.Saturday,
	"Sun": time.Sunday,
}

// AllDays is the default days_of_week value covering every weekday.
const AllDays = "Mon,Tue,Wed,Thu,Fri,Sat,Sun"

// Schedule is a recurring dosing rule for one medication: take it at
// TimeOfDay (interpreted in Timezone) on each weekday listed in
// DaysOfWeek.  A schedule only generates reminders while Active is true
// and the underlying medication has not expired.  Persistence enforces
// the expiry coupling: saving a schedule whose medication has passed its
// end date clears the Active flag.
//
// Fields:
//  ID           – primary key identifier.
//  UserID       – owner of the schedule.
//  MedicationID – medication this schedule doses.
//  TimeOfDay    – local wall-clock time "HH:MM" (schedules.time_of_day).
//  DaysOfWeek   – comma separated weekday tokens, subset of Mon..Sun.
//  Timezone     – IANA zone name the TimeOfDay is anchored to.
//  Active       – whether the schedule currently generates reminders.
//  CreatedAt    – creation timestamp.
type Schedule struct {
	ID           uint64    `json:"id"`            // schedules.id
	UserID       uint64    `json:"user_id"`       // schedules.user_id
	MedicationID uint64    `json:"medication_id"` // schedules.medication_id
	TimeOfDay    string    `json:"time_of_day"`   // schedules.time_of_day, "HH:MM"
	DaysOfWeek   string    `json:"days_of_week"`  // schedules.days_of_week
	Timezone     string    `json:"timezone"`      // schedules.timezone
	Active       bool      `json:"active"`        // schedules.active
	CreatedAt    time.Time `json:"created_at"`    // schedules.created_at
}

// Weekdays parses DaysOfWeek and returns the set of scheduled weekdays.
// Unknown tokens are ignored, matching the permissive parsing of the
// stored string.
func (s *Schedule) Weekdays() map[time.Weekday]bool {
	out := make(map[time.Weekday]bool)
	for _, tok := range strings.Split(s.DaysOfWeek, ",") {
		if wd, ok := dayNames[strings.TrimSpace(tok)]; ok {
			out[wd] = true
		}
	}
	return out
}

// ScheduledFor reports whether the schedule fires on the given calendar
// date.  Only the weekday of the date matters.
func (s *Schedule) ScheduledFor(date time.Time) bool {
	return s.Weekdays()[date.Weekday()]
}

// Location resolves the schedule's timezone, falling back to UTC when
// the stored name cannot be loaded.
func (s *Schedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ClockTime splits TimeOfDay into hour and minute.  ok is false when the
// value is not a valid "HH:MM" (or "HH:MM:SS") string.
func (s *Schedule) ClockTime() (hour, min int, ok bool) {
	t, err := time.Parse("15:04", s.TimeOfDay)
	if err != nil {
		// MySQL TIME columns scan back as HH:MM:SS.
		t, err = time.Parse("15:04:05", s.TimeOfDay)
		if err != nil {
			return 0, 0, false
		}
	}
	return t.Hour(), t.Minute(), true
}

// Validate checks field-level constraints and returns a field-keyed error
// map, empty when the schedule is valid.
func (s *Schedule) Validate() map[string]string {
	errs := map[string]string{}
	if s.MedicationID == 0 {
		errs["medication"] = "medication is required"
	}
	if _, _, ok := s.ClockTime(); !ok {
		errs["time_of_day"] = "time of day must be HH:MM"
	}
	if len(s.Weekdays()) == 0 {
		errs["days_of_week"] = "at least one valid weekday (Mon..Sun) is required"
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			errs["timezone"] = "unknown timezone identifier"
		}
	}
	return errs
}
