package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"classtrack/internal/apiclient"
	"classtrack/internal/attendance"
	"classtrack/internal/config"
	"classtrack/internal/taking"
)

// take opens (or resumes) the attendance sheet for a timetable slot and a
// date, applies marks, and saves or completes it in one bulk write:
//
//	take -slot <slot-id> -class 5A -mark stu-7=late -mark stu-9=absent -complete
func main() {
	cfg := config.Load()

	var (
		baseURL   = flag.String("api", "http://localhost:"+cfg.HTTPPort, "API base URL")
		teacherID = flag.String("teacher", "", "teacher id for login")
		password  = flag.String("password", "", "teacher password")
		token     = flag.String("token", "", "access token (skips login)")
		slotID    = flag.String("slot", "", "timetable slot id")
		classID   = flag.String("class", "", "class id")
		date      = flag.String("date", time.Now().Format("2006-01-02"), "session date (YYYY-MM-DD)")
		resume    = flag.String("resume", "", "session id to resume instead of opening by slot")
		notes     = flag.String("notes", "", "session notes")
		complete  = flag.Bool("complete", false, "complete the session after saving")
		strict    = flag.Bool("strict", cfg.StrictLookup, "abort when the session lookup fails")
	)
	var marks multiFlag
	flag.Var(&marks, "mark", "student mark as student_id=status (repeatable)")
	flag.Parse()

	ctx := context.Background()
	client := apiclient.New(*baseURL, *token)
	if *token == "" {
		if *teacherID == "" || *password == "" {
			log.Fatal("either -token or -teacher and -password are required")
		}
		if err := client.Login(ctx, *teacherID, *password); err != nil {
			log.Fatalf("login failed: %v", err)
		}
	}

	var sheet *taking.Sheet
	var err error
	if *resume != "" {
		sheet, err = taking.Resume(ctx, client, *resume)
	} else {
		if *slotID == "" || *classID == "" {
			log.Fatal("-slot and -class are required (or -resume)")
		}
		sheet, err = taking.Open(ctx, client, *slotID, *classID, *date, taking.Options{
			Notes:        *notes,
			StrictLookup: *strict,
		})
	}
	if err != nil {
		var startErr *taking.StartError
		if errors.As(err, &startErr) {
			log.Fatalf("%v (retry later with -resume %s)", err, startErr.SessionID)
		}
		log.Fatalf("open sheet failed: %v", err)
	}

	sess := sheet.Session()
	fmt.Printf("session %s (%s, %s): %d students\n", sess.ID, sess.Date, sess.Status, len(sheet.Records()))

	for _, m := range marks {
		studentID, status, ok := strings.Cut(m, "=")
		if !ok {
			log.Fatalf("bad -mark %q, want student_id=status", m)
		}
		if err := sheet.Set(studentID, attendance.RecordStatus(status)); err != nil {
			log.Fatalf("mark %s: %v", studentID, err)
		}
	}

	if *complete {
		if err := sheet.Complete(ctx); err != nil {
			log.Fatalf("complete failed (sheet kept open): %v", err)
		}
		fmt.Println("session completed")
	} else {
		if err := sheet.Save(ctx); err != nil {
			log.Fatalf("save failed (marks kept locally): %v", err)
		}
		fmt.Println("attendance saved")
	}

	for _, r := range sheet.Records() {
		status, _ := sheet.Status(r.StudentID)
		fmt.Printf("  %-24s %s\n", r.Student.FullName, status)
	}
}

type multiFlag []string

func (f *multiFlag) String() string { return strings.Join(*f, ",") }

func (f *multiFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}
