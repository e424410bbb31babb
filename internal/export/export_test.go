package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"teranga-build/portal/portal-backend/internal/auth"
	"teranga-build/portal/portal-backend/internal/portal"
)

var testNow = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)

func newTestService() (*portal.Service, *portal.Tracker) {
	svc := portal.NewService(portal.NewFixtureRepository(), zap.NewNop(), portal.Options{
		Now:     func() time.Time { return testNow },
		Fixture: true,
	})
	return svc, portal.NewTracker(svc, zap.NewNop(), portal.TrackerOptions{})
}

func demoLedger(t *testing.T) *Ledger {
	t.Helper()
	svc, _ := newTestService()
	ctx := context.Background()
	project := svc.GetProject(ctx, "demo-project-1")
	require.NotNil(t, project)
	return NewLedger(*project, svc.GetProjectExpenses(ctx, project.ID), testNow)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatCSV, false},
		{"csv", FormatCSV, false},
		{" XLSX ", FormatXLSX, false},
		{"pdf", FormatPDF, false},
		{"docx", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLedgerSortsAndSums(t *testing.T) {
	l := demoLedger(t)

	require.Len(t, l.Expenses, 2)
	assert.Equal(t, "demo-expense-2", l.Expenses[0].ID)
	assert.Equal(t, "demo-expense-1", l.Expenses[1].ID)
	assert.Equal(t, 1075000.0, l.Total)
	assert.Equal(t, "depenses-demo-project-1-20240515.xlsx", l.Filename(FormatXLSX))
}

func TestWriteLedgerCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLedgerCSV(&buf, demoLedger(t)))

	r := csv.NewReader(&buf)
	r.Comma = ';'
	records, err := r.ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, ledgerColumns, records[0])
	assert.Equal(t, []string{"2024-01-15", "Main d'œuvre fondations", "Main d'œuvre", "850000"}, records[1])
	assert.Equal(t, []string{"2024-01-16", "Achat ciment Portland", "Matériaux", "225000"}, records[2])
	assert.Equal(t, []string{"", "Total", "", "1075000"}, records[3])
}

func TestWriteLedgerExcel(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLedgerExcel(&buf, demoLedger(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ledgerSheet}, f.GetSheetList())

	header, err := f.GetCellValue(ledgerSheet, "C1")
	require.NoError(t, err)
	assert.Equal(t, "Catégorie", header)

	desc, err := f.GetCellValue(ledgerSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Main d'œuvre fondations", desc)

	amount, err := f.GetCellValue(ledgerSheet, "D3", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "225000", amount)

	total, err := f.GetCellValue(ledgerSheet, "B4")
	require.NoError(t, err)
	assert.Equal(t, "Total", total)

	formula, err := f.GetCellFormula(ledgerSheet, "D4")
	require.NoError(t, err)
	assert.Equal(t, "SUM(D2:D3)", formula)
}

func TestWriteLedgerExcelEmpty(t *testing.T) {
	l := NewLedger(portal.Project{ID: "p", Name: "Vide"}, nil, testNow)

	var buf bytes.Buffer
	require.NoError(t, WriteLedgerExcel(&buf, l))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	tag, err := f.GetCellValue(ledgerSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "Total", tag)
}

func TestWritePDFs(t *testing.T) {
	var ledger bytes.Buffer
	require.NoError(t, WriteLedgerPDF(&ledger, demoLedger(t)))
	assert.True(t, bytes.HasPrefix(ledger.Bytes(), []byte("%PDF-")))

	_, tracker := newTestService()
	overview, err := tracker.Overview(context.Background(), "demo-project-1")
	require.NoError(t, err)

	var report bytes.Buffer
	require.NoError(t, WriteProjectReport(&report, overview, testNow))
	assert.True(t, bytes.HasPrefix(report.Bytes(), []byte("%PDF-")))
}

// =====================================================
// Archiver
// =====================================================

type mockUploader struct {
	mock.Mock
	bodies map[string][]byte
}

func (m *mockUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	args := m.Called(aws.ToString(input.Bucket), aws.ToString(input.Key))
	if err := args.Error(0); err != nil {
		return nil, err
	}
	body, _ := io.ReadAll(input.Body)
	if m.bodies == nil {
		m.bodies = map[string][]byte{}
	}
	m.bodies[aws.ToString(input.Key)] = body
	return &manager.UploadOutput{}, nil
}

func TestArchiveLedgers(t *testing.T) {
	svc, _ := newTestService()
	uploader := &mockUploader{}
	uploader.On("Upload", "exports", "ledgers/2024-05-15/demo-project-1.xlsx").Return(nil).Once()

	a := NewArchiver(uploader, svc, "exports", zap.NewNop())
	a.now = func() time.Time { return testNow }

	n, err := a.ArchiveLedgers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	uploader.AssertExpectations(t)

	body := uploader.bodies["ledgers/2024-05-15/demo-project-1.xlsx"]
	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()
	desc, err := f.GetCellValue(ledgerSheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "Achat ciment Portland", desc)
}

func TestArchiveLedgersReportsUploadFailure(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	require.NotNil(t, svc.CreateProjectExpense(ctx, &portal.ProjectExpense{
		ProjectID: "demo-project-2", Description: "Sable", Amount: 120000,
		Category: portal.ExpenseMaterials, Date: testNow, CreatedBy: "demo-pro-1",
	}))

	uploader := &mockUploader{}
	uploader.On("Upload", "exports", "ledgers/2024-05-15/demo-project-1.xlsx").Return(errors.New("access denied"))
	uploader.On("Upload", "exports", "ledgers/2024-05-15/demo-project-2.xlsx").Return(nil)

	a := NewArchiver(uploader, svc, "exports", zap.NewNop())
	a.now = func() time.Time { return testNow }

	n, err := a.ArchiveLedgers(ctx)
	assert.Equal(t, 1, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

// =====================================================
// Handler
// =====================================================

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, tracker := newTestService()
	h := NewHandler(svc, tracker, zap.NewNop())
	h.now = func() time.Time { return testNow }

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1", auth.Middleware(auth.MiddlewareOptions{AllowHeaders: true})))
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("X-User-ID", "demo-client-1")
	req.Header.Set("X-User-Type", "client")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlerExportLedger(t *testing.T) {
	r := newTestRouter(t)

	w := get(r, "/api/v1/projects/demo-project-1/expenses/export?format=xlsx")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, FormatXLSX.ContentType(), w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="depenses-demo-project-1-20240515.xlsx"`, w.Header().Get("Content-Disposition"))

	w = get(r, "/api/v1/projects/demo-project-1/expenses/export")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Achat ciment Portland")

	w = get(r, "/api/v1/projects/demo-project-1/expenses/export?format=odt")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = get(r, "/api/v1/projects/missing/expenses/export")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlerProjectReport(t *testing.T) {
	r := newTestRouter(t)

	w := get(r, "/api/v1/projects/demo-project-2/report")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = get(r, "/api/v1/projects/missing/report")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
