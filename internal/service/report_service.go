package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/naufal-dev/fyp-api/internal/models"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
	"github.com/naufal-dev/fyp-api/pkg/export"
)

type teacherLoadReader interface {
	TeacherLoads(ctx context.Context) ([]models.TeacherLoad, error)
}

// ReportFormat selects the export encoding.
type ReportFormat string

const (
	FormatCSV ReportFormat = "csv"
	FormatPDF ReportFormat = "pdf"
)

// ReportService exports supervision allocation summaries for admins.
type ReportService struct {
	loads  teacherLoadReader
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	logger *zap.Logger
}

// NewReportService creates a service instance.
func NewReportService(loads teacherLoadReader, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		loads:  loads,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		logger: logger,
	}
}

// SupervisionAllocation renders every teacher's capacity and load.
func (s *ReportService) SupervisionAllocation(ctx context.Context, format ReportFormat) ([]byte, string, error) {
	loads, err := s.loads.TeacherLoads(ctx)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect teacher loads")
	}

	data := export.Dataset{
		Headers: []string{"Teacher", "Email", "Capacity", "Assigned", "Remaining"},
	}
	for _, load := range loads {
		data.Rows = append(data.Rows, map[string]string{
			"Teacher":   load.FullName,
			"Email":     load.Email,
			"Capacity":  strconv.Itoa(load.MaxStudents),
			"Assigned":  strconv.Itoa(load.Assigned),
			"Remaining": strconv.Itoa(load.Remaining()),
		})
	}

	switch ReportFormat(strings.ToLower(string(format))) {
	case FormatPDF:
		out, err := s.pdf.Render(data, "Supervision Allocation")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return out, "application/pdf", nil
	case FormatCSV, "":
		out, err := s.csv.Render(data)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return out, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}
