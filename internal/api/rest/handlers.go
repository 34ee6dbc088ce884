package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	domainErrors "github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
	"github.com/davidleathers/workflow-insights-backend/internal/service/reporting"
)

// UploadField is the multipart field carrying the event log
const UploadField = "csvfile"

var validate = validator.New()

// CredentialsRequest is the body of signup and signin
type CredentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// AccountResponse is returned by signup
type AccountResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadResponse is returned after an upload has been analysed
type UploadResponse struct {
	RunID       uuid.UUID         `json:"run_id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Summary     reporting.Summary `json:"summary"`
	Sections    []string          `json:"sections"`
}

// HealthResponse reports dependency status
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthChecker checks one dependency
type HealthChecker func(ctx context.Context) error

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !s.decode(w, r, &req) {
		return
	}

	acct, err := s.deps.Accounts.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, AccountResponse{
		ID:        acct.ID,
		Email:     acct.Email.String(),
		CreatedAt: acct.CreatedAt,
	})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if !s.decode(w, r, &req) {
		return
	}

	session, err := s.deps.Accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromContext(r.Context())
	if !ok {
		writeError(w, r, domainErrors.NewUnauthorizedError("Authorization required"))
		return
	}

	if r.ContentLength > s.cfg.Uploads.MaxBytes {
		writeError(w, r, &http.MaxBytesError{Limit: s.cfg.Uploads.MaxBytes})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Uploads.MaxBytes)
	file, _, err := r.FormFile(UploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, err)
			return
		}
		writeError(w, r, domainErrors.NewValidationError("MISSING_FILE",
			"multipart field "+UploadField+" is required"))
		return
	}
	defer file.Close()

	doc, err := s.deps.Reports.Process(r.Context(), accountID, file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	sections := make([]string, 0, len(doc.Sections))
	for name := range doc.Sections {
		sections = append(sections, name)
	}
	sort.Strings(sections)

	writeJSON(w, http.StatusCreated, UploadResponse{
		RunID:       doc.RunID,
		GeneratedAt: doc.GeneratedAt,
		Summary:     doc.Summary,
		Sections:    sections,
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromContext(r.Context())
	if !ok {
		writeError(w, r, domainErrors.NewUnauthorizedError("Authorization required"))
		return
	}

	doc, err := s.deps.Reports.Report(r.Context(), accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromContext(r.Context())
	if !ok {
		writeError(w, r, domainErrors.NewUnauthorizedError("Authorization required"))
		return
	}

	raw, err := s.deps.Reports.Section(r.Context(), accountID, r.PathValue("section"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeRawJSON(w, http.StatusOK, raw)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromContext(r.Context())
	if !ok {
		writeError(w, r, domainErrors.NewUnauthorizedError("Authorization required"))
		return
	}
	s.deps.Hub.Serve(w, r, accountID)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy", Version: s.cfg.Version}
	status := http.StatusOK
	if len(s.deps.HealthCheckers) > 0 {
		resp.Checks = make(map[string]string, len(s.deps.HealthCheckers))
	}
	for name, check := range s.deps.HealthCheckers {
		if err := check(ctx); err != nil {
			resp.Checks[name] = "unhealthy"
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "healthy"
	}
	writeJSON(w, status, resp)
}

// decode reads and validates a JSON body, writing the error response itself
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		var maxErr *http.MaxBytesError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.As(err, &maxErr) {
			writeError(w, r, err)
			return false
		}
		writeError(w, r, domainErrors.NewValidationError("INVALID_BODY", "request body must be a JSON object"))
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, r, err)
		return false
	}
	return true
}
