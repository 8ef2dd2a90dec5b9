// Seeder command for populating a demo teacher, class roster, and
// timetable so the API and take CLI can be exercised locally.
//
// Only runs when APP_ENV is dev/development and --confirm is provided.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"

	"classtrack/internal/auth"
	"classtrack/internal/config"
	"classtrack/internal/store"
)

func main() {
	confirm := flag.Bool("confirm", false, "confirm seeding (required)")
	password := flag.String("password", "classtrack", "password for the demo teacher")
	students := flag.Int("students", 12, "number of students to enroll")
	flag.Parse()

	cfg := config.Load()
	if cfg.Env != "dev" && cfg.Env != "development" {
		log.Fatal("seeder only runs with APP_ENV=dev")
	}
	if !*confirm {
		log.Fatal("--confirm flag is required to run the seeder")
	}

	ctx := context.Background()
	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if err := store.Migrate(db.Client); err != nil {
		log.Fatalf("migrate failed: %v", err)
	}

	hash, err := auth.HashPassword(*password)
	if err != nil {
		log.Fatalf("hash password failed: %v", err)
	}

	teacherID := "teacher-demo"
	if _, err := db.Client.ExecContext(ctx, `
		INSERT INTO teachers (id, full_name, email, password_hash)
		VALUES ($1, 'Demo Teacher', 'teacher@classtrack.test', $2)
		ON CONFLICT (id) DO UPDATE SET password_hash = EXCLUDED.password_hash
	`, teacherID, hash); err != nil {
		log.Fatalf("insert teacher failed: %v", err)
	}

	classID := "5A"
	slotID := uuid.NewString()
	if _, err := db.Client.ExecContext(ctx, `
		INSERT INTO timetable_slots (id, teacher_id, class_id, class_name, subject, room, weekday, starts_at, ends_at)
		VALUES ($1, $2, $3, 'Class 5A', 'Mathematics', 'R101', 1, '08:00', '08:45')
	`, slotID, teacherID, classID); err != nil {
		log.Fatalf("insert slot failed: %v", err)
	}

	for i := 1; i <= *students; i++ {
		studentID := uuid.NewString()
		name := fmt.Sprintf("Student %02d", i)
		email := fmt.Sprintf("student%02d@classtrack.test", i)
		if _, err := db.Client.ExecContext(ctx, `
			INSERT INTO students (id, full_name, email) VALUES ($1, $2, $3)
		`, studentID, name, email); err != nil {
			log.Fatalf("insert student failed: %v", err)
		}
		if _, err := db.Client.ExecContext(ctx, `
			INSERT INTO enrollments (class_id, student_id) VALUES ($1, $2)
		`, classID, studentID); err != nil {
			log.Fatalf("insert enrollment failed: %v", err)
		}
	}

	log.Printf("seeded teacher %s (password %q), class %s with %d students, slot %s",
		teacherID, *password, classID, *students, slotID)
}
