package student_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"rosterd/internal/metrics"
	"rosterd/internal/storage"
	"rosterd/internal/student"
	"rosterd/internal/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func setupRouter(t *testing.T, pgContainer *testdb.PostgresContainer) chi.Router {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	connector := storage.NewConnectorDSN(pgContainer.DSN, logger)
	repo := student.NewRepository(connector, metrics.NewMock())
	service := student.NewService(repo, nil, logger)
	handler := student.NewHandler(service, logger, metrics.NewMock())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return router
}

func uploadBody(t *testing.T, rows ...[]interface{}) (*bytes.Buffer, string) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	workbook, err := f.WriteToBuffer()
	require.NoError(t, err)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "students.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook.Bytes())
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

func TestStudentHandler_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)

	pgContainer.RunMigrations(t, (*student.Student)(nil))

	router := setupRouter(t, pgContainer)

	header := []interface{}{"name", "age", "class_label", "email", "phone_number"}

	importStudents := func(t *testing.T, rows ...[]interface{}) *student.ImportReport {
		t.Helper()
		body, contentType := uploadBody(t, rows...)
		req := httptest.NewRequest(http.MethodPost, "/api/students/import", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var report student.ImportReport
		require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
		return &report
	}

	t.Run("Import_Success", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		report := importStudents(t,
			header,
			[]interface{}{"Alice", 20, "10A", "alice@example.com", "111"},
			[]interface{}{"Bob", 21, "10B", "bob@example.com", "222"},
		)
		assert.Equal(t, 2, report.Upserted)
		assert.Empty(t, report.Failures)

		req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var students []student.Student
		require.NoError(t, json.NewDecoder(w.Body).Decode(&students))
		require.Len(t, students, 2)
		assert.Equal(t, "Alice", students[0].Name)
		assert.Equal(t, "Bob", students[1].Name)
	})

	t.Run("Import_MissingColumns", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		body, contentType := uploadBody(t,
			[]interface{}{"name", "email"},
			[]interface{}{"Alice", "alice@example.com"},
		)
		req := httptest.NewRequest(http.MethodPost, "/api/students/import", body)
		req.Header.Set("Content-Type", contentType)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "missing required columns")
	})

	t.Run("Import_MissingFile", func(t *testing.T) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		require.NoError(t, writer.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/students/import", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("List_Empty", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		req := httptest.NewRequest(http.MethodGet, "/api/students", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String())
	})

	t.Run("Update_Success", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		importStudents(t, header, []interface{}{"Alice", 20, "10A", "alice@example.com", "111"})

		payload := map[string]interface{}{
			"name":         "Alice Cooper",
			"age":          25,
			"class_label":  "11C",
			"email":        "alice@example.com",
			"phone_number": "111",
		}
		body, _ := json.Marshal(payload)

		req := httptest.NewRequest(http.MethodPut, "/api/students/1", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var updated student.Student
		require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
		assert.Equal(t, "Alice Cooper", updated.Name)
		assert.Equal(t, 25, updated.Age)
	})

	t.Run("Update_NotFound", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		payload := map[string]interface{}{
			"name":         "Ghost",
			"age":          1,
			"email":        "ghost@example.com",
			"phone_number": "000",
		}
		body, _ := json.Marshal(payload)

		req := httptest.NewRequest(http.MethodPut, "/api/students/9999", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Update_Conflict", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		importStudents(t,
			header,
			[]interface{}{"Alice", 20, "10A", "alice@example.com", "111"},
			[]interface{}{"Bob", 21, "10B", "bob@example.com", "222"},
		)

		// Steal Alice's phone number for Bob.
		payload := map[string]interface{}{
			"name":         "Bob",
			"age":          21,
			"class_label":  "10B",
			"email":        "bob@example.com",
			"phone_number": "111",
		}
		body, _ := json.Marshal(payload)

		req := httptest.NewRequest(http.MethodPut, "/api/students/2", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Delete_Success", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		importStudents(t, header, []interface{}{"Alice", 20, "10A", "alice@example.com", "111"})

		req := httptest.NewRequest(http.MethodDelete, "/api/students/1", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)

		// Deleting again reports not found.
		req = httptest.NewRequest(http.MethodDelete, "/api/students/1", nil)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("InvalidID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/students/abc", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
