package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
)

// fakeWorld is an in-memory store shared by the repository fakes. WithTx
// snapshots it and restores the snapshot when fn fails.
type fakeWorld struct {
	classes     map[string]models.Class
	students    map[string]models.Student
	instructors map[string]models.Instructor
	enrollments []models.Enrollment
	waitlist    []models.WaitlistEntry
	seq         int
	failures    map[string]error
}

type worldSnapshot struct {
	classes     map[string]models.Class
	enrollments []models.Enrollment
	waitlist    []models.WaitlistEntry
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		classes:     map[string]models.Class{},
		students:    map[string]models.Student{},
		instructors: map[string]models.Instructor{},
		failures:    map[string]error{},
	}
}

func (w *fakeWorld) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	snap := worldSnapshot{
		classes:     make(map[string]models.Class, len(w.classes)),
		enrollments: append([]models.Enrollment(nil), w.enrollments...),
		waitlist:    append([]models.WaitlistEntry(nil), w.waitlist...),
	}
	for k, v := range w.classes {
		snap.classes[k] = v
	}
	if err := fn(nil); err != nil {
		w.classes, w.enrollments, w.waitlist = snap.classes, snap.enrollments, snap.waitlist
		return err
	}
	return nil
}

func (w *fakeWorld) failOn(op string, err error) { w.failures[op] = err }

func (w *fakeWorld) fail(op string) error { return w.failures[op] }

func (w *fakeWorld) nextID(prefix string) string {
	w.seq++
	return fmt.Sprintf("%s-%d", prefix, w.seq)
}

func (w *fakeWorld) addClass(id, instructorID string, current, max int) {
	w.classes[id] = models.Class{
		ID:                id,
		Department:        "CS",
		CourseCode:        "CS" + strings.TrimPrefix(id, "class-"),
		SectionNumber:     1,
		ClassName:         "Class " + id,
		InstructorID:      instructorID,
		CurrentEnrollment: current,
		MaxEnrollment:     max,
	}
	if _, ok := w.instructors[instructorID]; !ok && instructorID != "" {
		w.instructors[instructorID] = models.Instructor{ID: instructorID, FirstName: "Ada", LastName: "Byron"}
	}
}

func (w *fakeWorld) addStudents(ids ...string) {
	for _, id := range ids {
		w.students[id] = models.Student{ID: id, FirstName: strings.ToUpper(id[:1]) + id[1:], LastName: "Student", Email: id + "@campus.edu"}
	}
}

// seedEnrolled inserts active rows without touching the counter.
func (w *fakeWorld) seedEnrolled(classID string, studentIDs ...string) {
	for _, id := range studentIDs {
		w.enrollments = append(w.enrollments, models.Enrollment{
			ID: w.nextID("enr"), StudentID: id, ClassID: classID, EnrollmentDate: time.Now().UTC(),
		})
	}
}

// seedWaitlist appends entries with consecutive positions.
func (w *fakeWorld) seedWaitlist(classID string, studentIDs ...string) {
	base := len(w.waitlistFor(classID))
	for i, id := range studentIDs {
		w.waitlist = append(w.waitlist, models.WaitlistEntry{
			ID: w.nextID("wl"), StudentID: id, ClassID: classID, Position: base + i + 1, DateAdded: time.Now().UTC(),
		})
	}
}

func (w *fakeWorld) waitlistFor(classID string) []models.WaitlistEntry {
	var out []models.WaitlistEntry
	for _, e := range w.waitlist {
		if e.ClassID == classID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// waitlistOrder returns the student ids of the class waitlist with their positions.
func (w *fakeWorld) waitlistOrder(classID string) map[string]int {
	out := map[string]int{}
	for _, e := range w.waitlistFor(classID) {
		out[e.StudentID] = e.Position
	}
	return out
}

func (w *fakeWorld) activeCount(classID string) int {
	n := 0
	for _, e := range w.enrollments {
		if e.ClassID == classID && e.Active() {
			n++
		}
	}
	return n
}

func (w *fakeWorld) isActive(studentID, classID string) bool {
	for _, e := range w.enrollments {
		if e.StudentID == studentID && e.ClassID == classID && e.Active() {
			return true
		}
	}
	return false
}

type fakeClasses struct{ w *fakeWorld }

func (f fakeClasses) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Class, error) {
	return f.FindByID(ctx, id)
}

func (f fakeClasses) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if err := f.w.fail("classes.FindByID"); err != nil {
		return nil, err
	}
	class, ok := f.w.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &class, nil
}

func (f fakeClasses) SetCurrentEnrollment(ctx context.Context, tx *sqlx.Tx, id string, value int) error {
	if err := f.w.fail("classes.SetCurrentEnrollment"); err != nil {
		return err
	}
	class := f.w.classes[id]
	class.CurrentEnrollment = value
	f.w.classes[id] = class
	return nil
}

func (f fakeClasses) ExistsByNameAndSection(ctx context.Context, tx *sqlx.Tx, className string, section int) (bool, error) {
	for _, c := range f.w.classes {
		if c.ClassName == className && c.SectionNumber == section {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeClasses) Create(ctx context.Context, tx *sqlx.Tx, class *models.Class) error {
	if class.ID == "" {
		class.ID = f.w.nextID("class")
	}
	f.w.classes[class.ID] = *class
	return nil
}

func (f fakeClasses) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	delete(f.w.classes, id)
	return nil
}

func (f fakeClasses) SetFrozen(ctx context.Context, tx *sqlx.Tx, id string, frozen bool) error {
	class := f.w.classes[id]
	class.AutomaticEnrollmentFrozen = frozen
	f.w.classes[id] = class
	return nil
}

func (f fakeClasses) SetInstructor(ctx context.Context, tx *sqlx.Tx, id, instructorID string) error {
	class := f.w.classes[id]
	class.InstructorID = instructorID
	f.w.classes[id] = class
	return nil
}

func (f fakeClasses) ListAvailable(ctx context.Context, filter models.ClassFilter) ([]dto.AvailableClass, int, error) {
	if err := f.w.fail("classes.ListAvailable"); err != nil {
		return nil, 0, err
	}
	var items []dto.AvailableClass
	for _, c := range f.w.classes {
		if c.AutomaticEnrollmentFrozen || !c.HasOpenSeat() {
			continue
		}
		if filter.Department != "" && c.Department != filter.Department {
			continue
		}
		items = append(items, dto.AvailableClass{
			ID: c.ID, Department: c.Department, CourseCode: c.CourseCode, SectionNumber: c.SectionNumber,
			ClassName: c.ClassName, CurrentEnrollment: c.CurrentEnrollment, MaxEnrollment: c.MaxEnrollment,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, len(items), nil
}

func (f fakeClasses) ListByInstructor(ctx context.Context, instructorID string) ([]dto.InstructorClass, error) {
	var out []dto.InstructorClass
	for _, c := range f.w.classes {
		if c.InstructorID == instructorID {
			out = append(out, dto.InstructorClass{ID: c.ID, ClassName: c.ClassName, SectionNumber: c.SectionNumber, CurrentEnrollment: c.CurrentEnrollment, MaxEnrollment: c.MaxEnrollment, Frozen: c.AutomaticEnrollmentFrozen})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeStudents struct{ w *fakeWorld }

func (f fakeStudents) LockByID(ctx context.Context, tx *sqlx.Tx, id string) (*models.Student, error) {
	student, ok := f.w.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

type fakeInstructors struct{ w *fakeWorld }

func (f fakeInstructors) FindByIDTx(ctx context.Context, tx *sqlx.Tx, id string) (*models.Instructor, error) {
	return f.FindByID(ctx, id)
}

func (f fakeInstructors) FindByID(ctx context.Context, id string) (*models.Instructor, error) {
	instructor, ok := f.w.instructors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &instructor, nil
}

type fakeEnrollments struct{ w *fakeWorld }

func (f fakeEnrollments) FindActive(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (*models.Enrollment, error) {
	for _, e := range f.w.enrollments {
		if e.StudentID == studentID && e.ClassID == classID && e.Active() {
			found := e
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeEnrollments) FindLatestDropped(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (*models.Enrollment, error) {
	var latest *models.Enrollment
	for i := range f.w.enrollments {
		e := f.w.enrollments[i]
		if e.StudentID == studentID && e.ClassID == classID && e.Dropped {
			if latest == nil || !e.EnrollmentDate.Before(latest.EnrollmentDate) {
				latest = &e
			}
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	return latest, nil
}

func (f fakeEnrollments) Create(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment) error {
	if err := f.w.fail("enrollments.Create"); err != nil {
		return err
	}
	enrollment.ID = f.w.nextID("enr")
	enrollment.EnrollmentDate = time.Now().UTC()
	f.w.enrollments = append(f.w.enrollments, *enrollment)
	return nil
}

func (f fakeEnrollments) SetDropped(ctx context.Context, tx *sqlx.Tx, id string, dropped bool) error {
	for i := range f.w.enrollments {
		if f.w.enrollments[i].ID == id {
			f.w.enrollments[i].Dropped = dropped
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f fakeEnrollments) DeleteByClass(ctx context.Context, tx *sqlx.Tx, classID string) error {
	kept := f.w.enrollments[:0]
	for _, e := range f.w.enrollments {
		if e.ClassID != classID {
			kept = append(kept, e)
		}
	}
	f.w.enrollments = kept
	return nil
}

func (f fakeEnrollments) ListByClass(ctx context.Context, classID string, dropped bool) ([]models.EnrollmentDetail, error) {
	var out []models.EnrollmentDetail
	for _, e := range f.w.enrollments {
		if e.ClassID == classID && e.Dropped == dropped {
			st := f.w.students[e.StudentID]
			out = append(out, models.EnrollmentDetail{Enrollment: e, FirstName: st.FirstName, LastName: st.LastName, Email: st.Email})
		}
	}
	return out, nil
}

type fakeWaitlists struct{ w *fakeWorld }

func (f fakeWaitlists) ListByClass(ctx context.Context, tx *sqlx.Tx, classID string) ([]models.WaitlistEntry, error) {
	return f.w.waitlistFor(classID), nil
}

func (f fakeWaitlists) FindByStudentAndClass(ctx context.Context, tx *sqlx.Tx, studentID, classID string) (*models.WaitlistEntry, error) {
	for _, e := range f.w.waitlist {
		if e.StudentID == studentID && e.ClassID == classID {
			found := e
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f fakeWaitlists) CountByStudent(ctx context.Context, tx *sqlx.Tx, studentID string) (int, error) {
	n := 0
	for _, e := range f.w.waitlist {
		if e.StudentID == studentID {
			n++
		}
	}
	return n, nil
}

func (f fakeWaitlists) Create(ctx context.Context, tx *sqlx.Tx, entry *models.WaitlistEntry) error {
	entry.ID = f.w.nextID("wl")
	f.w.waitlist = append(f.w.waitlist, *entry)
	return nil
}

func (f fakeWaitlists) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	for i, e := range f.w.waitlist {
		if e.ID == id {
			f.w.waitlist = append(f.w.waitlist[:i:i], f.w.waitlist[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f fakeWaitlists) DeleteByClass(ctx context.Context, tx *sqlx.Tx, classID string) error {
	var kept []models.WaitlistEntry
	for _, e := range f.w.waitlist {
		if e.ClassID != classID {
			kept = append(kept, e)
		}
	}
	f.w.waitlist = kept
	return nil
}

func (f fakeWaitlists) UpdatePositions(ctx context.Context, tx *sqlx.Tx, updates []models.WaitlistPosition) error {
	if err := f.w.fail("waitlists.UpdatePositions"); err != nil {
		return err
	}
	for _, u := range updates {
		for i := range f.w.waitlist {
			if f.w.waitlist[i].ID == u.ID {
				f.w.waitlist[i].Position = u.Position
			}
		}
	}
	return nil
}

func (f fakeWaitlists) ListDetailByClass(ctx context.Context, classID string) ([]models.WaitlistEntryDetail, error) {
	var out []models.WaitlistEntryDetail
	for _, e := range f.w.waitlistFor(classID) {
		st := f.w.students[e.StudentID]
		out = append(out, models.WaitlistEntryDetail{WaitlistEntry: e, FirstName: st.FirstName, LastName: st.LastName, ClassName: f.w.classes[classID].ClassName})
	}
	return out, nil
}

func (f fakeWaitlists) ListDetailByStudent(ctx context.Context, studentID string) ([]models.WaitlistEntryDetail, error) {
	var out []models.WaitlistEntryDetail
	for _, e := range f.w.waitlist {
		if e.StudentID == studentID {
			out = append(out, models.WaitlistEntryDetail{WaitlistEntry: e, ClassName: f.w.classes[e.ClassID].ClassName})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassID < out[j].ClassID })
	return out, nil
}

type fakeEvents struct{ published []models.EnrollmentEvent }

func (f *fakeEvents) Publish(ctx context.Context, events ...models.EnrollmentEvent) {
	f.published = append(f.published, events...)
}

func (f *fakeEvents) types() []models.EventType {
	out := make([]models.EventType, 0, len(f.published))
	for _, e := range f.published {
		out = append(out, e.Type)
	}
	return out
}

type fakeRejections struct{ codes []string }

func (f *fakeRejections) RecordRejection(code string) { f.codes = append(f.codes, code) }

// engine wires the enrollment services over one fakeWorld.
type engine struct {
	world       *fakeWorld
	events      *fakeEvents
	rejections  *fakeRejections
	waitlists   *WaitlistService
	promotions  *PromotionService
	enrollments *EnrollmentService
	classes     *ClassService
}

func newEngine(t *testing.T, limits WaitlistLimits) *engine {
	t.Helper()
	w := newFakeWorld()
	events := &fakeEvents{}
	rejections := &fakeRejections{}
	logger := zap.NewNop()

	waitlists := NewWaitlistService(w, fakeClasses{w}, fakeWaitlists{w}, events, limits, logger)
	promotions := NewPromotionService(fakeClasses{w}, fakeEnrollments{w}, waitlists, logger)
	enrollments := NewEnrollmentService(EnrollmentDeps{
		Store:       w,
		Classes:     fakeClasses{w},
		Students:    fakeStudents{w},
		Instructors: fakeInstructors{w},
		Enrollments: fakeEnrollments{w},
		Waitlists:   waitlists,
		Promotions:  promotions,
		Events:      events,
		Metrics:     rejections,
	}, nil, logger)
	classes := NewClassService(ClassDeps{
		Store:       w,
		Classes:     fakeClasses{w},
		Instructors: fakeInstructors{w},
		Enrollments: fakeEnrollments{w},
		Waitlists:   fakeWaitlists{w},
		Promotions:  promotions,
		Events:      events,
	}, ClassConfig{}, nil, logger)

	return &engine{
		world:       w,
		events:      events,
		rejections:  rejections,
		waitlists:   waitlists,
		promotions:  promotions,
		enrollments: enrollments,
		classes:     classes,
	}
}

func (e *engine) enroll(studentID, classID string) (*dto.EnrollmentResult, error) {
	return e.enrollments.Enroll(context.Background(), studentID, dto.RegistrarEnrollRequest{StudentID: studentID, ClassID: classID})
}
