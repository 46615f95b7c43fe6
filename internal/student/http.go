package student

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"rosterd/internal/httputil"
	"rosterd/internal/metrics"
	"rosterd/internal/roster"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// maxUploadBytes caps the size of an uploaded workbook.
const maxUploadBytes = 16 << 20

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/students/import", h.ImportStudents)
	router.Get("/students", h.ListStudents)
	router.Get("/students/{id}", h.GetStudent)
	router.Put("/students/{id}", h.UpdateStudent)
	router.Delete("/students/{id}", h.DeleteStudent)
}

// ImportStudents accepts a multipart upload with an xlsx workbook under
// the "file" field and upserts its rows keyed on email.
func (h *Handler) ImportStudents(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	rows, err := roster.Parse(file)
	if err != nil {
		var missing *roster.MissingColumnsError
		if errors.As(err, &missing) {
			httputil.RespondWithError(w, http.StatusBadRequest, missing.Error())
			return
		}
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	candidates := make([]Candidate, len(rows))
	for i, row := range rows {
		candidates[i] = Candidate{
			Name:        row.Name,
			Age:         row.Age,
			ClassLabel:  row.ClassLabel,
			Email:       row.Email,
			PhoneNumber: row.PhoneNumber,
		}
	}

	h.logger.InfoContext(r.Context(), "importing students", "rows", len(candidates))

	report, err := h.service.ImportStudents(r.Context(), candidates)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentsImported(r.Context(), report.Upserted)

	httputil.RespondWithJSON(w, http.StatusOK, report)
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "fetching all students")

	students, err := h.service.ListStudents(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if students == nil {
		students = []Student{}
	}

	h.metrics.RecordStudentsListViewed(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, students)
}

func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid student ID")
		return
	}

	student, err := h.service.GetStudentByID(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, student)
}

func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid student ID")
		return
	}

	var student Student
	if err := json.NewDecoder(r.Body).Decode(&student); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := h.validate.Struct(&student); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request")
		return
	}
	student.ID = id

	h.logger.InfoContext(r.Context(), "updating student", "id", id)

	if err := h.service.UpdateStudent(r.Context(), &student); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentUpdated(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, student)
}

func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid student ID")
		return
	}

	h.logger.InfoContext(r.Context(), "deleting student", "id", id)

	if err := h.service.DeleteStudent(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.metrics.RecordStudentDeleted(r.Context())

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		h.logger.InfoContext(r.Context(), "student not found")
		httputil.RespondWithError(w, http.StatusNotFound, "student not found")
	case errors.Is(err, ErrConflict):
		h.logger.InfoContext(r.Context(), "constraint violation")
		httputil.RespondWithError(w, http.StatusConflict, ErrConflict.Error())
	case errors.Is(err, ErrInvalidInput):
		h.logger.InfoContext(r.Context(), "invalid input")
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "internal error", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "internal error")
	}
}
