// handlers_files.go - File staging handlers
package api

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/quick-analysis/backend/internal/flow"
	"github.com/quick-analysis/backend/internal/logger"
	"github.com/quick-analysis/backend/internal/models"
	"github.com/quick-analysis/backend/internal/staging"
	"github.com/quick-analysis/backend/internal/storage"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	flowBase
}

// NewFileHandler creates a new file handler
func NewFileHandler(sessions SessionManager) FileHandler {
	return &FileHandlerImpl{flowBase{sessions: sessions}}
}

type addFilesResponse struct {
	View     models.View           `json:"view" msgpack:"view"`
	Accepted []models.StagedFile   `json:"accepted" msgpack:"accepted"`
	Rejected []models.RejectedFile `json:"rejected" msgpack:"rejected"`
}

type removeFileResponse struct {
	View    models.View `json:"view" msgpack:"view"`
	Removed bool        `json:"removed" msgpack:"removed"`
}

// HandleAddFiles stages every part of the multipart field "files". Only
// files that pass validation are written to storage; the rest are reported
// as rejected.
func (h *FileHandlerImpl) HandleAddFiles(c echo.Context) error {
	f, err := h.lookup(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("expected multipart form with field 'files'", err)
	}
	headers := form.File["files"]

	candidates, err := h.saveCandidates(c.Request().Context(), f, headers)
	if err != nil {
		return err
	}

	sel, err := f.AddFiles(candidates)
	if err != nil {
		return h.domainError(f, err)
	}

	var total int64
	for _, a := range sel.Accepted {
		total += a.SizeBytes
	}
	logger.WithFields(logrus.Fields{
		"session":  f.ID(),
		"accepted": len(sel.Accepted),
		"rejected": len(sel.Rejected),
		"size":     humanize.IBytes(uint64(total)),
	}).Info("files staged")

	return respond(c, http.StatusOK, addFilesResponse{
		View:     h.render(f),
		Accepted: nonNilStaged(sel.Accepted),
		Rejected: nonNilRejected(sel.Rejected),
	})
}

func (h *FileHandlerImpl) saveCandidates(ctx context.Context, f *flow.Flow, headers []*multipart.FileHeader) ([]staging.Candidate, error) {
	store := h.sessions.Store()
	rules := f.Rules()
	release := storage.ReleaseFunc(store, nil)

	candidates := make([]staging.Candidate, 0, len(headers))
	for _, fh := range headers {
		cand := staging.Candidate{
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: fh.Header.Get(echo.HeaderContentType),
		}
		if store != nil && rules.Validate(fh.Filename, fh.Size) == nil {
			info, err := saveUpload(ctx, store, fh)
			if err != nil {
				release(stagedFrom(candidates))
				return nil, NewInternalError("failed to save file", err)
			}
			cand.FileID = info.ID
			cand.Size = info.Size
		}
		candidates = append(candidates, cand)
	}
	return candidates, nil
}

func saveUpload(ctx context.Context, store storage.Store, fh *multipart.FileHeader) (*models.FileInfo, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return store.Save(ctx, fh.Filename, fh.Header.Get(echo.HeaderContentType), src)
}

func stagedFrom(candidates []staging.Candidate) []models.StagedFile {
	out := make([]models.StagedFile, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, models.StagedFile{Name: c.Name, SizeBytes: c.Size, FileID: c.FileID})
	}
	return out
}

// HandleRemoveFile drops a staged file by position. An out-of-range index
// leaves the flow unchanged and reports removed=false.
func (h *FileHandlerImpl) HandleRemoveFile(c echo.Context) error {
	f, err := h.lookup(c)
	if err != nil {
		return err
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return NewValidationError("index")
	}

	removed, err := f.RemoveFile(index)
	if err != nil {
		return h.domainError(f, err)
	}
	return respond(c, http.StatusOK, removeFileResponse{View: h.render(f), Removed: removed})
}

func nonNilStaged(s []models.StagedFile) []models.StagedFile {
	if s == nil {
		return []models.StagedFile{}
	}
	return s
}

func nonNilRejected(s []models.RejectedFile) []models.RejectedFile {
	if s == nil {
		return []models.RejectedFile{}
	}
	return s
}
