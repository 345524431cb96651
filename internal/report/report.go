// Package report builds the adherence analytics report.  The builder is
// pure: it aggregates already-fetched records and streak snapshots so
// the arithmetic is testable without a database.
package report

import (
	"math"
	"sort"
	"time"

	"github.com/iliyamo/medication-adherence/internal/model"
)

// overdueAfter is how far past its dose time a pending record counts as
// overdue in the report.  Deliberately looser than the escalation sweep
// so the count surfaces records the sweep has not reached yet.
const overdueAfter = 2 * time.Hour

// recentMissedWindow bounds the recent-missed-doses list.
const recentMissedWindow = 7 * 24 * time.Hour

// attentionListCap caps the recent-missed and pending-responses lists.
const attentionListCap = 10

// Period describes the window the report covers.
type Period struct {
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	DaysCovered int    `json:"days_covered"`
}

// Overall holds the window-wide counters and rates.
type Overall struct {
	TotalScheduledDoses  int     `json:"total_scheduled_doses"`
	DosesTaken           int     `json:"doses_taken"`
	DosesMissed          int     `json:"doses_missed"`
	DosesSkipped         int     `json:"doses_skipped"`
	PendingResponses     int     `json:"pending_responses"`
	OverdueResponses     int     `json:"overdue_responses"`
	OverallAdherenceRate float64 `json:"overall_adherence_rate"`
	CompletionRate       float64 `json:"completion_rate"`
}

// Daily is one calendar day of the daily series.
type Daily struct {
	Date          string  `json:"date"`
	Taken         int     `json:"taken"`
	Missed        int     `json:"missed"`
	Skipped       int     `json:"skipped"`
	Pending       int     `json:"pending"`
	Total         int     `json:"total"`
	AdherenceRate float64 `json:"adherence_rate"`
}

// MedicationBreakdown is per-medication totals joined with the streak
// snapshot, zeroed when no streak row exists yet.
type MedicationBreakdown struct {
	MedicationID        uint64  `json:"medication_id"`
	MedicationName      string  `json:"medication_name"`
	TotalDoses          int     `json:"total_doses"`
	Taken               int     `json:"taken"`
	Missed              int     `json:"missed"`
	Skipped             int     `json:"skipped"`
	Pending             int     `json:"pending"`
	AdherenceRate       float64 `json:"adherence_rate"`
	CurrentTakenStreak  int     `json:"current_taken_streak"`
	CurrentMissedStreak int     `json:"current_missed_streak"`
	LongestTakenStreak  int     `json:"longest_taken_streak"`
	LongestMissedStreak int     `json:"longest_missed_streak"`
}

// Hourly is one hour of the time-of-day distribution.  Pending records
// are excluded; missed counts skipped doses too.
type Hourly struct {
	Hour          int     `json:"hour"`
	Taken         int     `json:"taken"`
	Missed        int     `json:"missed"`
	Total         int     `json:"total"`
	AdherenceRate float64 `json:"adherence_rate"`
}

// Weekly is one trailing week of dose totals, most recent week first.
type Weekly struct {
	WeekNumber    int     `json:"week_number"`
	WeekStart     string  `json:"week_start"`
	WeekEnd       string  `json:"week_end"`
	TotalDoses    int     `json:"total_doses"`
	Taken         int     `json:"taken"`
	AdherenceRate float64 `json:"adherence_rate"`
}

// Insights are the derived headline findings.
type Insights struct {
	BestAdherenceMedication  *string `json:"best_adherence_medication"`
	WorstAdherenceMedication *string `json:"worst_adherence_medication"`
	BestTimeOfDay            *int    `json:"best_time_of_day"`
	ImprovementTrend         string  `json:"improvement_trend"`
}

// RecordView is the record shape embedded in the attention lists.
type RecordView struct {
	ID             uint64     `json:"id"`
	MedicationID   uint64     `json:"medication_id"`
	MedicationName string     `json:"medication_name"`
	ReminderID     uint64     `json:"reminder_id"`
	Status         string     `json:"status"`
	ScheduledTime  time.Time  `json:"scheduled_time"`
	ActualTime     *time.Time `json:"actual_time"`
	IsLate         bool       `json:"is_late"`
	MinutesLate    *int       `json:"minutes_late"`
	Notes          string     `json:"notes"`
}

// Report is the full analytics payload.
type Report struct {
	ReportPeriod        Period                `json:"report_period"`
	OverallStatistics   Overall               `json:"overall_statistics"`
	DailyAdherence      []Daily               `json:"daily_adherence"`
	MedicationBreakdown []MedicationBreakdown `json:"medication_breakdown"`
	TimeOfDayAnalysis   []Hourly              `json:"time_of_day_analysis"`
	WeeklyTrends        []Weekly              `json:"weekly_trends"`
	RecentMissedDoses   []RecordView          `json:"recent_missed_doses"`
	PendingResponses    []RecordView          `json:"pending_responses"`
	Insights            Insights              `json:"insights"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func rate(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

// Build aggregates the given in-window records into a Report.  records
// must already be filtered to the caller and to scheduled_time within
// [start, end]; medNames maps medication ids to display names and
// streaks holds the caller's streak rows keyed by medication id.
func Build(records []model.AdherenceRecord, medNames map[uint64]string, streaks map[uint64]model.AdherenceStreak, start, end, now time.Time, days int) *Report {
	r := &Report{
		ReportPeriod: Period{
			StartDate:   start.UTC().Format("2006-01-02"),
			EndDate:     end.UTC().Format("2006-01-02"),
			DaysCovered: days,
		},
	}

	var taken, missed, skipped, pending, overdue int
	for i := range records {
		switch records[i].Status {
		case model.AdherenceTaken:
			taken++
		case model.AdherenceMissed:
			missed++
		case model.AdherenceSkipped:
			skipped++
		case model.AdherencePending:
			pending++
			if records[i].ScheduledTime.Before(now.Add(-overdueAfter)) {
				overdue++
			}
		}
	}
	total := len(records)
	completed := total - pending
	r.OverallStatistics = Overall{
		TotalScheduledDoses:  total,
		DosesTaken:           taken,
		DosesMissed:          missed,
		DosesSkipped:         skipped,
		PendingResponses:     pending,
		OverdueResponses:     overdue,
		OverallAdherenceRate: rate(taken, completed),
		CompletionRate:       rate(completed, total),
	}

	r.DailyAdherence = buildDaily(records, start, end)
	r.MedicationBreakdown = buildMedications(records, medNames, streaks)
	r.TimeOfDayAnalysis = buildHourly(records)
	r.WeeklyTrends = buildWeekly(records, now)
	r.RecentMissedDoses = attentionMissed(records, medNames, now)
	r.PendingResponses = attentionPending(records, medNames, now)
	r.Insights = buildInsights(r.MedicationBreakdown, r.TimeOfDayAnalysis, r.WeeklyTrends)
	return r
}

func buildDaily(records []model.AdherenceRecord, start, end time.Time) []Daily {
	byDay := map[string]*Daily{}
	for i := range records {
		key := records[i].ScheduledTime.UTC().Format("2006-01-02")
		d := byDay[key]
		if d == nil {
			d = &Daily{Date: key}
			byDay[key] = d
		}
		switch records[i].Status {
		case model.AdherenceTaken:
			d.Taken++
		case model.AdherenceMissed:
			d.Missed++
		case model.AdherenceSkipped:
			d.Skipped++
		case model.AdherencePending:
			d.Pending++
		}
	}
	out := make([]Daily, 0)
	startDay := time.Date(start.UTC().Year(), start.UTC().Month(), start.UTC().Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.UTC().Year(), end.UTC().Month(), end.UTC().Day(), 0, 0, 0, 0, time.UTC)
	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		d := Daily{Date: key}
		if agg := byDay[key]; agg != nil {
			d = *agg
		}
		d.Total = d.Taken + d.Missed + d.Skipped + d.Pending
		d.AdherenceRate = rate(d.Taken, d.Total)
		out = append(out, d)
	}
	return out
}

func buildMedications(records []model.AdherenceRecord, medNames map[uint64]string, streaks map[uint64]model.AdherenceStreak) []MedicationBreakdown {
	order := make([]uint64, 0)
	byMed := map[uint64]*MedicationBreakdown{}
	for i := range records {
		id := records[i].MedicationID
		m := byMed[id]
		if m == nil {
			m = &MedicationBreakdown{MedicationID: id, MedicationName: medNames[id]}
			byMed[id] = m
			order = append(order, id)
		}
		m.TotalDoses++
		switch records[i].Status {
		case model.AdherenceTaken:
			m.Taken++
		case model.AdherenceMissed:
			m.Missed++
		case model.AdherenceSkipped:
			m.Skipped++
		case model.AdherencePending:
			m.Pending++
		}
	}
	out := make([]MedicationBreakdown, 0, len(order))
	for _, id := range order {
		m := byMed[id]
		m.AdherenceRate = rate(m.Taken, m.TotalDoses-m.Pending)
		if st, ok := streaks[id]; ok {
			m.CurrentTakenStreak = st.CurrentTakenStreak
			m.CurrentMissedStreak = st.CurrentMissedStreak
			m.LongestTakenStreak = st.LongestTakenStreak
			m.LongestMissedStreak = st.LongestMissedStreak
		}
		out = append(out, *m)
	}
	return out
}

func buildHourly(records []model.AdherenceRecord) []Hourly {
	out := make([]Hourly, 24)
	for h := range out {
		out[h].Hour = h
	}
	for i := range records {
		if records[i].Status == model.AdherencePending {
			continue
		}
		h := records[i].ScheduledTime.UTC().Hour()
		out[h].Total++
		if records[i].Status == model.AdherenceTaken {
			out[h].Taken++
		} else {
			out[h].Missed++
		}
	}
	for h := range out {
		out[h].AdherenceRate = rate(out[h].Taken, out[h].Total)
	}
	return out
}

func buildWeekly(records []model.AdherenceRecord, now time.Time) []Weekly {
	out := make([]Weekly, 0, 4)
	for week := 0; week < 4; week++ {
		weekStart := now.Add(-time.Duration(week+1) * 7 * 24 * time.Hour)
		weekEnd := now.Add(-time.Duration(week) * 7 * 24 * time.Hour)
		w := Weekly{
			WeekNumber: week + 1,
			WeekStart:  weekStart.UTC().Format("2006-01-02"),
			WeekEnd:    weekEnd.UTC().Format("2006-01-02"),
		}
		for i := range records {
			t := records[i].ScheduledTime
			if t.Before(weekStart) || !t.Before(weekEnd) {
				continue
			}
			w.TotalDoses++
			if records[i].Status == model.AdherenceTaken {
				w.Taken++
			}
		}
		w.AdherenceRate = rate(w.Taken, w.TotalDoses)
		out = append(out, w)
	}
	return out
}

func toView(rec *model.AdherenceRecord, medNames map[uint64]string) RecordView {
	return RecordView{
		ID:             rec.ID,
		MedicationID:   rec.MedicationID,
		MedicationName: medNames[rec.MedicationID],
		ReminderID:     rec.ReminderID,
		Status:         rec.Status,
		ScheduledTime:  rec.ScheduledTime,
		ActualTime:     rec.ActualTime,
		IsLate:         rec.IsLate,
		MinutesLate:    rec.MinutesLate,
		Notes:          rec.Notes,
	}
}

// attentionMissed lists missed and skipped doses from the last seven
// days, newest first, capped.
func attentionMissed(records []model.AdherenceRecord, medNames map[uint64]string, now time.Time) []RecordView {
	cut := now.Add(-recentMissedWindow)
	picked := make([]*model.AdherenceRecord, 0)
	for i := range records {
		st := records[i].Status
		if (st == model.AdherenceMissed || st == model.AdherenceSkipped) && !records[i].ScheduledTime.Before(cut) {
			picked = append(picked, &records[i])
		}
	}
	sortByScheduled(picked, true)
	out := make([]RecordView, 0, attentionListCap)
	for _, rec := range picked {
		if len(out) == attentionListCap {
			break
		}
		out = append(out, toView(rec, medNames))
	}
	return out
}

// attentionPending lists pending records already past their dose time,
// oldest first, capped.
func attentionPending(records []model.AdherenceRecord, medNames map[uint64]string, now time.Time) []RecordView {
	picked := make([]*model.AdherenceRecord, 0)
	for i := range records {
		if records[i].Status == model.AdherencePending && records[i].ScheduledTime.Before(now) {
			picked = append(picked, &records[i])
		}
	}
	sortByScheduled(picked, false)
	out := make([]RecordView, 0, attentionListCap)
	for _, rec := range picked {
		if len(out) == attentionListCap {
			break
		}
		out = append(out, toView(rec, medNames))
	}
	return out
}

func sortByScheduled(recs []*model.AdherenceRecord, newestFirst bool) {
	sort.SliceStable(recs, func(i, j int) bool {
		if newestFirst {
			return recs[i].ScheduledTime.After(recs[j].ScheduledTime)
		}
		return recs[i].ScheduledTime.Before(recs[j].ScheduledTime)
	})
}

func buildInsights(meds []MedicationBreakdown, hours []Hourly, weeks []Weekly) Insights {
	ins := Insights{ImprovementTrend: "stable"}
	if len(meds) > 0 {
		best, worst := 0, 0
		for i := range meds {
			if meds[i].AdherenceRate > meds[best].AdherenceRate {
				best = i
			}
			if meds[i].AdherenceRate < meds[worst].AdherenceRate {
				worst = i
			}
		}
		b, w := meds[best].MedicationName, meds[worst].MedicationName
		ins.BestAdherenceMedication = &b
		ins.WorstAdherenceMedication = &w
	}
	bestHour := -1
	for h := range hours {
		if hours[h].Total == 0 {
			continue
		}
		if bestHour < 0 || hours[h].AdherenceRate > hours[bestHour].AdherenceRate {
			bestHour = h
		}
	}
	if bestHour >= 0 {
		h := bestHour
		ins.BestTimeOfDay = &h
	}
	if len(weeks) >= 2 && weeks[0].TotalDoses > 0 && weeks[1].TotalDoses > 0 {
		if weeks[0].AdherenceRate > weeks[1].AdherenceRate {
			ins.ImprovementTrend = "improving"
		} else {
			ins.ImprovementTrend = "declining"
		}
	}
	return ins
}
