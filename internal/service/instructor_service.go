package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-enrollment-api/internal/dto"
	"github.com/noah-isme/course-enrollment-api/internal/models"
	appErrors "github.com/noah-isme/course-enrollment-api/pkg/errors"
	"github.com/noah-isme/course-enrollment-api/pkg/export"
)

type instructorClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListByInstructor(ctx context.Context, instructorID string) ([]dto.InstructorClass, error)
}

type instructorFinder interface {
	FindByID(ctx context.Context, id string) (*models.Instructor, error)
}

type rosterReader interface {
	ListByClass(ctx context.Context, classID string, dropped bool) ([]models.EnrollmentDetail, error)
}

type classWaitlistReader interface {
	ListForClass(ctx context.Context, classID string) (*dto.ClassWaitlist, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// InstructorService serves class owners: their classes, rosters, waitlists and exports.
// Registrars may read any class.
type InstructorService struct {
	classes     instructorClassReader
	instructors instructorFinder
	rosters     rosterReader
	waitlists   classWaitlistReader
	csv         csvRenderer
	pdf         pdfRenderer
	logger      *zap.Logger
	now         func() time.Time
}

// NewInstructorService constructs InstructorService.
func NewInstructorService(classes instructorClassReader, instructors instructorFinder, rosters rosterReader, waitlists classWaitlistReader, csv csvRenderer, pdf pdfRenderer, logger *zap.Logger) *InstructorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &InstructorService{
		classes:     classes,
		instructors: instructors,
		rosters:     rosters,
		waitlists:   waitlists,
		csv:         csv,
		pdf:         pdf,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListClasses returns the classes taught by the instructor.
func (s *InstructorService) ListClasses(ctx context.Context, instructorID string) ([]dto.InstructorClass, error) {
	if _, err := s.instructors.FindByID(ctx, instructorID); err != nil {
		return nil, instructorLookupError(err)
	}
	classes, err := s.classes.ListByInstructor(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list instructor classes")
	}
	if classes == nil {
		classes = []dto.InstructorClass{}
	}
	return classes, nil
}

// ClassWaitlist returns the ordered waitlist of an owned class.
func (s *InstructorService) ClassWaitlist(ctx context.Context, principal models.Principal, classID string) (*dto.ClassWaitlist, error) {
	if _, err := s.authorize(ctx, principal, classID); err != nil {
		return nil, err
	}
	return s.waitlists.ListForClass(ctx, classID)
}

// DroppedStudents lists students who dropped an owned class.
func (s *InstructorService) DroppedStudents(ctx context.Context, principal models.Principal, classID string) (*dto.Roster, error) {
	class, err := s.authorize(ctx, principal, classID)
	if err != nil {
		return nil, err
	}
	return s.roster(ctx, class, true)
}

// Roster lists the active students of an owned class.
func (s *InstructorService) Roster(ctx context.Context, principal models.Principal, classID string) (*dto.Roster, error) {
	class, err := s.authorize(ctx, principal, classID)
	if err != nil {
		return nil, err
	}
	return s.roster(ctx, class, false)
}

// ExportRoster renders the active roster as CSV or PDF.
func (s *InstructorService) ExportRoster(ctx context.Context, principal models.Principal, classID, format string) (*dto.RosterExport, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != dto.RosterFormatCSV && format != dto.RosterFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	roster, err := s.Roster(ctx, principal, classID)
	if err != nil {
		return nil, err
	}

	dataset := rosterDataset(roster)
	stamp := s.now().Format("20060102-150405")
	var result dto.RosterExport
	switch format {
	case dto.RosterFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render roster")
		}
		result = dto.RosterExport{FileName: fmt.Sprintf("roster-%s-%s.csv", classID, stamp), ContentType: "text/csv", Content: content}
	default:
		content, err := s.pdf.Render(dataset, roster.ClassName+" roster")
		if err != nil {
			return nil, appErrors.Internal(err, "failed to render roster")
		}
		result = dto.RosterExport{FileName: fmt.Sprintf("roster-%s-%s.pdf", classID, stamp), ContentType: "application/pdf", Content: content}
	}

	s.logger.Info("roster exported", zap.String("class_id", classID), zap.String("format", format), zap.Int("rows", len(roster.Students)))
	return &result, nil
}

func (s *InstructorService) authorize(ctx context.Context, principal models.Principal, classID string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrClassNotFound
		}
		return nil, appErrors.Internal(err, "failed to load class")
	}
	if principal.HasRole(models.RoleRegistrar) {
		return class, nil
	}
	if class.InstructorID != principal.Subject {
		return nil, appErrors.ErrNotAuthorized
	}
	return class, nil
}

func (s *InstructorService) roster(ctx context.Context, class *models.Class, dropped bool) (*dto.Roster, error) {
	rows, err := s.rosters.ListByClass(ctx, class.ID, dropped)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load roster")
	}
	roster := &dto.Roster{ClassID: class.ID, ClassName: class.ClassName, Students: make([]dto.RosterEntry, 0, len(rows))}
	for _, row := range rows {
		roster.Students = append(roster.Students, dto.RosterEntry{
			StudentID:      row.StudentID,
			FirstName:      row.FirstName,
			LastName:       row.LastName,
			Email:          row.Email,
			EnrollmentDate: row.EnrollmentDate,
		})
	}
	return roster, nil
}

func rosterDataset(roster *dto.Roster) export.Dataset {
	dataset := export.Dataset{Headers: []string{"Student", "First Name", "Last Name", "Email", "Enrolled"}}
	for _, st := range roster.Students {
		dataset.AddRow(st.StudentID, st.FirstName, st.LastName, st.Email, st.EnrollmentDate.Format("2006-01-02"))
	}
	return dataset
}
