package statistics

import (
	"github.com/facultyattendance/internal/courses"
	"github.com/facultyattendance/internal/records"
)

// Compute aggregates attendance records into per course and overall statistics.
//
// Records must be sorted by date, most recent first: the first record of a
// course is treated as its last class. Compute never fails, missing or empty
// input produces zero values.
//
// Every listed course gets an entry, also when there are no records at all:
// such courses report zero classes and zero averages, and TotalStudents is
// still the largest roster.
func Compute(rr []*records.Record, cc []*courses.Course) *Stats {
	stats := &Stats{
		TotalClasses: len(rr),
		CourseStats:  make(map[string]Course, len(cc)),
	}

	byCourse := make(map[string][]*records.Record, len(cc))
	for _, record := range rr {
		if record == nil {
			continue
		}
		byCourse[record.CourseID] = append(byCourse[record.CourseID], record)
	}

	var totalPresent, totalEnrolled int
	for _, course := range cc {
		if course == nil {
			continue
		}
		if _, ok := stats.CourseStats[course.ID]; ok {
			continue
		}
		enrolled := course.RosterSize()
		stats.TotalStudents = max(stats.TotalStudents, enrolled)

		courseRecords := byCourse[course.ID]
		coursePresent := 0
		for _, record := range courseRecords {
			coursePresent += record.PresentCount()
		}
		totalPresent += coursePresent
		totalEnrolled += enrolled * len(courseRecords)

		lastClass := 0
		if len(courseRecords) > 0 {
			lastClass = courseRecords[0].PresentCount()
		}

		stats.CourseStats[course.ID] = Course{
			CourseName:          course.Name,
			CourseCode:          course.Code,
			TotalClasses:        len(courseRecords),
			EnrolledStudents:    enrolled,
			AverageAttendance:   Percent(coursePresent, len(courseRecords)*enrolled),
			LastClassAttendance: lastClass,
		}
	}

	stats.AverageAttendance = Percent(totalPresent, totalEnrolled)
	return stats
}

// Percent returns part/whole as a percentage rounded half up, clamped to [0, 100].
// It returns 0 when whole is not positive.
func Percent(part, whole int) int {
	if whole <= 0 || part <= 0 {
		return 0
	}
	if part >= whole {
		return 100
	}
	return (200*part + whole) / (2 * whole)
}
