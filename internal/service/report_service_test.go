package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/naufal-dev/fyp-api/internal/models"
	appErrors "github.com/naufal-dev/fyp-api/pkg/errors"
)

type teacherLoadStub struct {
	loads []models.TeacherLoad
	err   error
}

func (s teacherLoadStub) TeacherLoads(ctx context.Context) ([]models.TeacherLoad, error) {
	return s.loads, s.err
}

func TestReportServiceSupervisionAllocationCSV(t *testing.T) {
	stub := teacherLoadStub{loads: []models.TeacherLoad{
		{TeacherID: "teacher-1", FullName: "Dr. Hartono", Email: "hartono@example.edu", MaxStudents: 6, Assigned: 5},
		{TeacherID: "teacher-2", FullName: "Dr. Sari", Email: "sari@example.edu", MaxStudents: 4, Assigned: 4},
	}}
	svc := NewReportService(stub, zap.NewNop())

	out, contentType, err := svc.SupervisionAllocation(context.Background(), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	body := string(out)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Teacher,Email,Capacity,Assigned,Remaining", strings.TrimSpace(lines[0]))
	assert.Contains(t, lines[1], "Dr. Hartono")
	assert.Contains(t, lines[1], ",1")
	assert.Contains(t, lines[2], ",0")
}

func TestReportServiceSupervisionAllocationPDF(t *testing.T) {
	stub := teacherLoadStub{loads: []models.TeacherLoad{
		{TeacherID: "teacher-1", FullName: "Dr. Hartono", Email: "hartono@example.edu", MaxStudents: 6, Assigned: 2},
	}}
	svc := NewReportService(stub, zap.NewNop())

	out, contentType, err := svc.SupervisionAllocation(context.Background(), FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}

func TestReportServiceSupervisionAllocationUnknownFormat(t *testing.T) {
	svc := NewReportService(teacherLoadStub{}, zap.NewNop())

	_, _, err := svc.SupervisionAllocation(context.Background(), "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
