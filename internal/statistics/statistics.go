package statistics

type Course struct {
	CourseName          string `json:"courseName"`
	CourseCode          string `json:"courseCode"`
	TotalClasses        int    `json:"totalClasses"`
	EnrolledStudents    int    `json:"enrolledStudents"`
	AverageAttendance   int    `json:"averageAttendance"`
	LastClassAttendance int    `json:"lastClassAttendance"`
}

type Stats struct {
	TotalClasses int `json:"totalClasses"`
	// TotalStudents is the largest roster among the courses.
	TotalStudents int `json:"totalStudents"`
	// AverageAttendance is a percentage weighted by the number of classes held.
	AverageAttendance int `json:"averageAttendance"`
	// CourseStats is keyed by course id.
	CourseStats map[string]Course `json:"courseStats"`
}
