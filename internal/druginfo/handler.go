package druginfo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/platform/blobstore"
)

// Lookup resolves medicine names to details. Satisfied by *Resolver.
type Lookup interface {
	Resolve(ctx context.Context, names []string) ([]*Details, error)
}

type Handler struct {
	lookup   Lookup
	maxBytes int64
	env      string
	logger   zerolog.Logger
	now      func() time.Time
}

func NewHandler(lookup Lookup, maxBytes int64, env string, logger zerolog.Logger) *Handler {
	return &Handler{lookup: lookup, maxBytes: maxBytes, env: env, logger: logger, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/upload", h.Upload)
	api.POST("/search", h.Search)
	api.GET("/health", h.Health)
}

func fail(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]interface{}{"success": false, "error": msg})
}

func (h *Handler) Upload(c echo.Context) error {
	fh, err := c.FormFile("pdf")
	if err != nil {
		return fail(c, http.StatusBadRequest, "PDF file is required")
	}
	data, err := blobstore.ReadUpload(fh, h.maxBytes, "application/pdf")
	switch {
	case err == nil:
	case errors.Is(err, blobstore.ErrMissingFileName):
		return fail(c, http.StatusBadRequest, "PDF file is required")
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return fail(c, http.StatusBadRequest, "Only PDF files are allowed")
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return fail(c, http.StatusRequestEntityTooLarge, "File too large")
	default:
		return err
	}

	text, err := ExtractText(data)
	if err != nil {
		h.logger.Warn().Err(err).Str("file", fh.Filename).Msg("pdf text extraction failed")
		return fail(c, http.StatusBadRequest, "Could not read the PDF file")
	}

	names := ExtractCandidates(text)
	if len(names) == 0 {
		return fail(c, http.StatusNotFound, "No medicine names found")
	}
	return h.respond(c, names)
}

type searchRequest struct {
	Medicines json.RawMessage `json:"medicines"`
}

// names accepts either a single string or a list of strings.
func (r searchRequest) names() []string {
	if len(r.Medicines) == 0 {
		return nil
	}
	var one string
	if err := json.Unmarshal(r.Medicines, &one); err == nil {
		return NormalizeNames([]string{one})
	}
	var many []string
	if err := json.Unmarshal(r.Medicines, &many); err == nil {
		return NormalizeNames(many)
	}
	return nil
}

func (h *Handler) Search(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "Please provide medicine name(s)")
	}
	names := req.names()
	if len(names) == 0 {
		return fail(c, http.StatusBadRequest, "Please provide medicine name(s)")
	}
	return h.respond(c, names)
}

func (h *Handler) respond(c echo.Context, names []string) error {
	details, err := h.lookup.Resolve(c.Request().Context(), names)
	if errors.Is(err, ErrUpstream) {
		h.logger.Error().Err(err).Int("medicines", len(names)).Msg("drug lookup failed")
		return fail(c, http.StatusInternalServerError, "Failed to fetch drug information")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"medicines": details})
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":      "ok",
		"environment": h.env,
		"timestamp":   h.now().UTC().Format(time.RFC3339Nano),
	})
}
