package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"

	"github.com/facultyattendance/internal/courses"
	"github.com/facultyattendance/internal/faculty"
	"github.com/facultyattendance/internal/keys"
	"github.com/facultyattendance/internal/sqlite"
)

type courseInserter interface {
	Insert(ctx context.Context, course *courses.Course) error
}

func main() {
	storage := flag.String("storage", "badger", "storage backend for courses: badger or sqlite")
	dbPath := flag.String("database-path", "attendance.db", "path to the database")
	key := flag.String("encryption-key", "please-change-me-please-change-me", "encryption key for faculty profiles")
	email := flag.String("email", "", "e-mail address of the faculty member")
	displayName := flag.String("display-name", "", "name shown on the dashboard")
	facultyID := flag.String("faculty-id", "", "faculty id that owns courses and records")
	department := flag.String("department", "", "department of the faculty member")
	coursesPath := flag.String("courses", "", "optional path to a JSON array of courses taught by the faculty member")
	flag.Parse()

	if envKey := os.Getenv("ENCRYPTION_KEY"); envKey != "" {
		key = &envKey
	}

	encryptionKey, err := keys.ParseKey([]byte(*key))
	if err != nil {
		log.Fatalf("[ERROR] encryption-key: %s", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	profile := &faculty.Profile{
		ID:          faculty.NewID(),
		Email:       *email,
		DisplayName: *displayName,
		FacultyID:   *facultyID,
		Department:  *department,
	}
	if err := validate.Struct(profile); err != nil {
		log.Fatalf("[ERROR] profile: %s", err)
	}

	var cc []*courses.Course
	if *coursesPath != "" {
		data, err := os.ReadFile(*coursesPath)
		if err != nil {
			log.Fatalf("[ERROR] courses: %s", err)
		}
		if err := json.Unmarshal(data, &cc); err != nil {
			log.Fatalf("[ERROR] courses: %s", err)
		}
		for _, course := range cc {
			if course.FacultyID == "" {
				course.FacultyID = profile.FacultyID
			}
			if err := validate.Struct(course); err != nil {
				log.Fatalf("[ERROR] course %q: %s", course.Code, err)
			}
		}
	}

	ctx := context.Background()

	db, err := badger.Open(badger.DefaultOptions(*dbPath))
	if err != nil {
		log.Fatalf("[ERROR] db: %s", err)
	}
	defer db.Close()

	var courseStore courseInserter
	switch *storage {
	case "badger":
		courseStore = courses.NewStore(db)
	case "sqlite":
		sqlDB, err := sqlite.Open(ctx, *dbPath+".sqlite")
		if err != nil {
			log.Fatalf("[ERROR] sqlite: %s", err)
		}
		defer sqlDB.Close()
		courseStore = sqlite.NewCourses(sqlDB)
	default:
		log.Fatalf("[ERROR] storage: unknown backend %q", *storage)
	}

	if err := faculty.NewStore(db, encryptionKey).Insert(ctx, profile); err != nil {
		log.Fatalf("[ERROR] insert profile: %s", err)
	}
	for _, course := range cc {
		if err := courseStore.Insert(ctx, course); err != nil {
			log.Fatalf("[ERROR] insert course %q: %s", course.Code, err)
		}
	}

	fmt.Printf("Faculty member created: %s (%s), profile id %s, %d course(s)\n",
		profile.DisplayName, profile.FacultyID, profile.ID, len(cc))
}
