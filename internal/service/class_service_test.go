package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
)

type memoryCacheRepo struct {
	entries map[string][]byte
	gets    int
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func validClassRequest() dto.CreateClassRequest {
	return dto.CreateClassRequest{
		Department:    "CS",
		CourseCode:    "CS101",
		SectionNumber: 2,
		ClassName:     "Intro to Programming",
		InstructorID:  "prof",
	}
}

func TestCreateClassDefaultsCapacity(t *testing.T) {
	e := newEngine(t, WaitlistLimits{})
	e.world.instructors["prof"] = models.Instructor{ID: "prof"}

	class, err := e.classes.Create(context.Background(), "registrar", validClassRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, class.ID)
	assert.Equal(t, 40, class.MaxEnrollment)
	assert.Equal(t, 0, class.CurrentEnrollment)
	assert.Contains(t, e.world.classes, class.ID)
	assert.Equal(t, []models.EventType{models.EventClassCreated}, e.events.types())
}

func TestCreateClassRejections(t *testing.T) {
	e := newEngine(t, WaitlistLimits{})
	e.world.instructors["prof"] = models.Instructor{ID: "prof"}
	ctx := context.Background()

	_, err := e.classes.Create(ctx, "registrar", validClassRequest())
	require.NoError(t, err)

	_, err = e.classes.Create(ctx, "registrar", validClassRequest())
	assert.ErrorIs(t, err, appErrors.ErrAlreadyExists)

	req := validClassRequest()
	req.SectionNumber = 3
	req.InstructorID = "ghost"
	_, err = e.classes.Create(ctx, "registrar", req)
	assert.ErrorIs(t, err, appErrors.ErrInstructorNotFound)

	req = validClassRequest()
	req.ClassName = ""
	_, err = e.classes.Create(ctx, "registrar", req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	assert.Len(t, e.world.classes, 1)
}

func TestDeleteClassCascades(t *testing.T) {
	e := newEngine(t, WaitlistLimits{})
	e.world.addClass("class-1", "prof", 1, 1)
	e.world.addClass("class-2", "prof", 1, 1)
	e.world.addStudents("alice", "bob")
	e.world.seedEnrolled("class-1", "alice")
	e.world.seedEnrolled("class-2", "bob")
	e.world.seedWaitlist("class-1", "bob")

	require.NoError(t, e.classes.Delete(context.Background(), "registrar", "class-1"))
	assert.NotContains(t, e.world.classes, "class-1")
	assert.Equal(t, 0, e.world.activeCount("class-1"))
	assert.Empty(t, e.world.waitlistOrder("class-1"))
	assert.Equal(t, 1, e.world.activeCount("class-2"))

	err := e.classes.Delete(context.Background(), "registrar", "class-1")
	assert.ErrorIs(t, err, appErrors.ErrClassNotFound)
}

func TestChangeInstructor(t *testing.T) {
	e := newEngine(t, WaitlistLimits{})
	e.world.addClass("class-1", "prof", 0, 10)
	e.world.instructors["grace"] = models.Instructor{ID: "grace"}
	ctx := context.Background()

	class, err := e.classes.ChangeInstructor(ctx, "registrar", "class-1", dto.ChangeInstructorRequest{InstructorID: "grace"})
	require.NoError(t, err)
	assert.Equal(t, "grace", class.InstructorID)
	assert.Equal(t, "grace", e.world.classes["class-1"].InstructorID)

	_, err = e.classes.ChangeInstructor(ctx, "registrar", "class-1", dto.ChangeInstructorRequest{InstructorID: "ghost"})
	assert.ErrorIs(t, err, appErrors.ErrInstructorNotFound)
	assert.Equal(t, "grace", e.world.classes["class-1"].InstructorID)
}

func TestFreezeAndUnfreeze(t *testing.T) {
	e := newEngine(t, WaitlistLimits{})
	e.world.addClass("class-1", "prof", 1, 1)
	e.world.addStudents("alice", "bob", "carol", "dave")
	e.world.seedEnrolled("class-1", "alice")
	e.world.seedWaitlist("class-1", "bob", "carol", "dave")
	ctx := context.Background()

	_, _, err := e.classes.Unfreeze(ctx, "registrar", "class-1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	class, err := e.classes.Freeze(ctx, "registrar", "class-1")
	require.NoError(t, err)
	assert.True(t, class.AutomaticEnrollmentFrozen)

	_, err = e.classes.Freeze(ctx, "registrar", "class-1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	// Two seats free up while frozen; nobody is promoted.
	_, err = e.enrollments.Drop(ctx, "alice", "class-1")
	require.NoError(t, err)
	raised := e.world.classes["class-1"]
	raised.MaxEnrollment = 2
	e.world.classes["class-1"] = raised
	assert.Len(t, e.world.waitlistOrder("class-1"), 3)

	e.events.published = nil
	unfrozen, promoted, err := e.classes.Unfreeze(ctx, "registrar", "class-1")
	require.NoError(t, err)
	assert.False(t, unfrozen.AutomaticEnrollmentFrozen)
	require.Len(t, promoted, 2)
	assert.Equal(t, "bob", promoted[0].StudentID)
	assert.Equal(t, "carol", promoted[1].StudentID)
	assert.Equal(t, 2, e.world.classes["class-1"].CurrentEnrollment)
	assert.Equal(t, map[string]int{"dave": 1}, e.world.waitlistOrder("class-1"))
	assert.Equal(t, []models.EventType{models.EventEnrollmentUnfrozen, models.EventPromoted, models.EventPromoted}, e.events.types())
}

func TestListAvailableUsesCache(t *testing.T) {
	e := newEngine(t, WaitlistLimits{})
	e.world.addClass("class-1", "prof", 0, 5)
	e.world.addClass("class-2", "prof", 5, 5)
	repo := &memoryCacheRepo{entries: map[string][]byte{}}
	e.classes.deps.Cache = NewCacheService(repo, nil, time.Minute, nil, true)
	ctx := context.Background()

	listing, hit, err := e.classes.ListAvailable(ctx, models.ClassFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, listing.Items, 1)
	assert.Equal(t, "class-1", listing.Items[0].ID)
	assert.Equal(t, models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, listing.Pagination)
	assert.Len(t, repo.entries, 1)

	// Served from cache even though the store now fails.
	e.world.failOn("classes.ListAvailable", errors.New("db down"))
	cached, hit, err := e.classes.ListAvailable(ctx, models.ClassFilter{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, listing, cached)

	require.NoError(t, e.classes.deps.Cache.(*CacheService).Invalidate(ctx, ClassListingPattern))
	_, _, err = e.classes.ListAvailable(ctx, models.ClassFilter{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}
