package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/studynotes/constants"
	"github.com/joseph-ayodele/studynotes/internal/codec"
	"github.com/joseph-ayodele/studynotes/internal/entity"
	"github.com/joseph-ayodele/studynotes/internal/export"
	"github.com/joseph-ayodele/studynotes/internal/ingest"
	"github.com/joseph-ayodele/studynotes/internal/pipeline"
	"github.com/joseph-ayodele/studynotes/internal/repository"
)

// Runner runs the ingestion pipeline for one uploaded image.
type Runner interface {
	Run(ctx context.Context, img *codec.RawImage) pipeline.Outcome
}

// RunnerFactory builds the runner for one request. Each upload gets its own
// pipeline so concurrent clients never see each other's busy state.
type RunnerFactory func() Runner

// Pinger reports whether the note store is reachable.
type Pinger func(ctx context.Context) error

const maxListLimit = 500

type Handler struct {
	newRun   RunnerFactory
	repo     repository.NoteRepository
	exporter *export.Service
	ping     Pinger
	maxBytes int64
	logger   *slog.Logger
}

func NewHandler(newRun RunnerFactory, repo repository.NoteRepository, exporter *export.Service, ping Pinger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		newRun:   newRun,
		repo:     repo,
		exporter: exporter,
		ping:     ping,
		maxBytes: ingest.DefaultMaxBytes,
		logger:   logger,
	}
}

type errorBody struct {
	Error      string `json:"error"`
	Kind       string `json:"kind,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

type createResponse struct {
	Note           *entity.Note   `json:"note"`
	Source         string         `json:"source"`
	Notes          []*entity.Note `json:"notes"`
	RefreshWarning string         `json:"refresh_warning,omitempty"`
}

// CreateNote ingests the multipart field "image".
func (h *Handler) CreateNote(c *gin.Context) {
	fh, err := c.FormFile("image")
	if err != nil {
		h.logger.Warn("http.notes.create.no_image", "error", err)
		c.JSON(http.StatusBadRequest, errorBody{Error: "no image provided", Kind: string(pipeline.InputMissing)})
		return
	}
	if fh.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody{Error: "image too large"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Error("http.notes.create.open_error", "error", err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: "failed to read upload"})
		return
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes))
	if err != nil {
		h.logger.Error("http.notes.create.read_error", "error", err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: "failed to read upload"})
		return
	}

	// empty MIME lets the encoder sniff
	mt := fh.Header.Get("Content-Type")
	if mt == "" || mt == constants.FallbackMIME {
		mt = constants.MIMEForExt(filepath.Ext(fh.Filename))
	}

	out := h.newRun().Run(c.Request.Context(), &codec.RawImage{Data: data, MIMEType: mt, Name: fh.Filename})
	status := HTTPStatus(out)
	switch out.Status {
	case pipeline.StatusSuccess:
		resp := createResponse{Note: out.Note, Source: string(out.Source), Notes: out.Notes}
		if out.RefreshError != nil {
			resp.RefreshWarning = out.RefreshError.Error()
		}
		c.JSON(status, resp)
	case pipeline.StatusCancelled:
		c.JSON(status, errorBody{Error: "request cancelled"})
	default:
		body := errorBody{Error: "ingestion failed"}
		if out.Failure != nil {
			body = errorBody{Error: out.Failure.Error(), Kind: string(out.Failure.Kind), StatusCode: out.Failure.StatusCode}
		}
		c.JSON(status, body)
	}
}

func listOptions(c *gin.Context) (repository.ListOptions, error) {
	opts := repository.ListOptions{Subject: strings.TrimSpace(c.Query("subject"))}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxListLimit {
			return opts, errors.New("limit must be between 0 and " + strconv.Itoa(maxListLimit))
		}
		opts.Limit = n
	}
	return opts, nil
}

// ListNotes returns notes newest date first.
func (h *Handler) ListNotes(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	notes, err := h.repo.List(c.Request.Context(), opts)
	if err != nil {
		h.logger.Error("http.notes.list_error", "error", err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: "failed to list notes"})
		return
	}
	if notes == nil {
		notes = []*entity.Note{}
	}
	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) ExportNotes(c *gin.Context) {
	opts, err := listOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	b, err := h.exporter.NotesXLSX(c.Request.Context(), opts)
	if err != nil {
		h.logger.Error("http.notes.export_error", "error", err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: "export failed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="notes.xlsx"`)
	c.Data(http.StatusOK, xlsxMIME, b)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			h.logger.Warn("http.healthz.db_down", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}
