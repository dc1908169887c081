package service

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/fee-ledger-api/internal/dto"
	"github.com/noah-isme/fee-ledger-api/internal/models"
	appErrors "github.com/noah-isme/fee-ledger-api/pkg/errors"
	"github.com/noah-isme/fee-ledger-api/pkg/export"
)

type studentCreator interface {
	Create(ctx context.Context, req StudentRequest) (*models.Student, error)
}

// ImportService loads students from CSV files.
type ImportService struct {
	students studentCreator
	logger   *zap.Logger
}

// NewImportService constructs an import service.
func NewImportService(students studentCreator, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{students: students, logger: logger}
}

// ImportStudents creates one student per CSV row. Rows missing name or class
// are skipped, as are rows the student service rejects.
func (s *ImportService) ImportStudents(ctx context.Context, r io.Reader) (*dto.ImportResult, error) {
	records, err := export.ReadRecords(r)
	if err != nil {
		return nil, appErrors.Validation("file", "file is not a readable CSV: "+err.Error())
	}

	result := &dto.ImportResult{}
	for _, record := range records {
		req := StudentRequest{
			Name:        record.Get("name"),
			Class:       record.Get("class"),
			Contact:     record.Get("contact"),
			MotherName:  record.Get("mother_name"),
			FatherName:  record.Get("father_name"),
			ParentPhone: firstNonEmpty(record.Get("parent_number"), record.Get("parent_phone")),
			ParentEmail: record.Get("parent_email"),
		}
		if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Class) == "" {
			result.Skipped++
			result.Errors = append(result.Errors, dto.ImportRowError{Line: record.Line, Reason: "name and class are required"})
			continue
		}
		if _, err := s.students.Create(ctx, req); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, dto.ImportRowError{Line: record.Line, Reason: appErrors.FromError(err).Message})
			continue
		}
		result.Imported++
	}

	s.logger.Info("students imported", zap.Int("imported", result.Imported), zap.Int("skipped", result.Skipped))
	return result, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
