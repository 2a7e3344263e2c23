package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
	"github.com/dmitrijs2005/seqsubmit/internal/server/services"
)

type sampleFileRequest struct {
	PrimaryKey string `json:"primary_key"`
	FileType   string `json:"filetype"`
}

func (s *Server) handleRemaining(w http.ResponseWriter, r *http.Request) {
	remaining, err := s.svc.Quota.Remaining(r.Context(), s.now())
	if err != nil {
		s.logger.Error(r.Context(), "remaining samples", "error", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, remaining)
}

func (s *Server) handleRunningOptions(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.Settings.Current(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "running options", "error", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"running_options": settings.RunningOptions})
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	who, _ := identityFromContext(r.Context())
	s.writeSamples(w, r, who.Email)
}

func (s *Server) handleAdminSamples(w http.ResponseWriter, r *http.Request) {
	s.writeSamples(w, r, "")
}

func (s *Server) writeSamples(w http.ResponseWriter, r *http.Request, email string) {
	list, err := s.svc.Samples.List(r.Context(), email)
	if err != nil {
		s.logger.Error(r.Context(), "list samples", "error", err)
		writeInternalError(w)
		return
	}
	if list == nil {
		list = []*models.Sample{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleReferenceSequence(w http.ResponseWriter, r *http.Request) {
	who, _ := identityFromContext(r.Context())

	var req sampleFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	d, reply, err := s.svc.Samples.Reference(r.Context(), who, req.PrimaryKey)
	s.writeDownload(w, r, d, reply, err)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	who, _ := identityFromContext(r.Context())

	var req sampleFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	d, reply, err := s.svc.Samples.Result(r.Context(), who, req.PrimaryKey, req.FileType)
	s.writeDownload(w, r, d, reply, err)
}

func (s *Server) writeDownload(w http.ResponseWriter, r *http.Request, d *services.Download, reply services.Reply, err error) {
	if err != nil {
		s.logger.Error(r.Context(), "download", "path", r.URL.Path, "error", err)
		writeInternalError(w)
		return
	}
	if d == nil {
		writeMessage(w, reply.Code, reply.Message)
		return
	}
	sendFile(w, d)
}

// parseMultipart bounds the request body and parses the form. It answers
// the request itself and returns false on failure.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	if s.maxUploadBytes > 0 {
		if r.ContentLength > s.maxUploadBytes {
			writeMessage(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return false
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	err := r.ParseMultipartForm(multipartMemory)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeMessage(w, http.StatusRequestEntityTooLarge, "Upload too large")
		return false
	case err != nil:
		writeMessage(w, http.StatusBadRequest, "Invalid form data")
		return false
	}
	return true
}

// formFile reads the uploaded file field "file". A missing file is not an
// error and yields nil.
func formFile(r *http.Request) (*services.Upload, error) {
	f, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func(f multipart.File) { _ = f.Close() }(f)

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &services.Upload{Filename: header.Filename, Data: data}, nil
}

func (s *Server) handleAddSample(w http.ResponseWriter, r *http.Request) {
	who, _ := identityFromContext(r.Context())
	if !s.parseMultipart(w, r) {
		return
	}

	concentration, err := strconv.Atoi(strings.TrimSpace(r.FormValue("concentration")))
	if err != nil || concentration < 0 {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid concentration"})
		return
	}
	ref, err := formFile(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	req := services.NewSample{
		Email:         who.Email,
		Name:          strings.TrimSpace(r.FormValue("name")),
		RunningOption: r.FormValue("running_option"),
		Concentration: concentration,
		Reference:     ref,
	}

	var (
		sample *models.Sample
		msg    string
	)
	for attempt := 0; attempt < slotRetries; attempt++ {
		sample, msg, err = s.svc.Samples.Add(r.Context(), req)
		if !errors.Is(err, common.ErrSlotTaken) {
			break
		}
	}
	switch {
	case errors.Is(err, common.ErrSlotTaken):
		writeMessage(w, http.StatusConflict, "Sample slot was taken, please retry")
	case err != nil:
		writeInternalError(w)
	case sample == nil:
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": msg})
	default:
		writeJSON(w, http.StatusOK, map[string]*models.Sample{"sample": sample})
	}
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.svc.Settings.Current(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "get settings", "error", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	who, _ := identityFromContext(r.Context())

	var req services.SettingsUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := s.svc.Settings.Update(r.Context(), who.Email, req)
	if err != nil {
		s.logger.Error(r.Context(), "update settings", "error", err)
		writeInternalError(w)
		return
	}
	writeReply(w, reply)
}

func (s *Server) handleZipSamples(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Samples.WeeklyArchive(r.Context(), s.now())
	if err != nil {
		s.logger.Error(r.Context(), "weekly samples archive", "error", err)
		writeInternalError(w)
		return
	}
	sendFile(w, d)
}

func (s *Server) handleAdminResult(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r) {
		return
	}

	success, err := strconv.ParseBool(strings.TrimSpace(r.FormValue("success")))
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Missing key: success=True/False")
		return
	}
	file, err := formFile(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	up := services.ResultUpload{
		PrimaryKey: r.FormValue("primary_key"),
		Success:    success,
	}
	if file != nil {
		up.Filename, up.Data = file.Filename, file.Data
	}

	reply, err := s.svc.Results.Process(r.Context(), up)
	if err != nil {
		s.logger.Error(r.Context(), "process result", "error", err)
		writeInternalError(w)
		return
	}
	writeReply(w, reply)
}
