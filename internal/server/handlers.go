package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/portfolify/shipd/internal/artifact"
	"github.com/portfolify/shipd/internal/guard"
	"github.com/portfolify/shipd/internal/job"
	"github.com/portfolify/shipd/internal/provider"
	"github.com/portfolify/shipd/internal/version"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":           "ok",
		"uptime":           time.Since(s.startTime).Seconds(),
		"deployment_count": s.store.Count(),
	}
	for k, v := range version.Fields() {
		resp[k] = v
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"providers": provider.List(),
	})
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	var req DeployRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalid(w, []string{err.Error()})
		return
	}
	req.Owner = r.Header.Get(ownerHeader)

	d, res, err := s.service.Run(r.Context(), req)
	if err != nil {
		s.writeAdmitError(w, err, req.Provider)
		return
	}

	if !res.Success {
		zap.S().Warnf("deploy: %s %s: %s", d.ID, res.State, res.Error)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success":      false,
			"error":        res.Error,
			"provider":     res.Provider,
			"deploymentId": d.ID,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"url":          res.URL(),
		"provider":     res.Provider,
		"message":      msgDeploySucceeded,
		"outcome":      res.Outcome,
		"logs":         res.Logs,
		"deploymentId": d.ID,
	})
}

func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	var req ConnectionRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, connectionError(err))
		return
	}

	p := provider.Provider(req.Provider)
	connected := s.tester.Test(r.Context(), p)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"provider":  p,
		"connected": connected,
	})
}

// connectionError maps a ConnectionRequest validation failure to its API
// message.
func connectionError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				return msgProviderRequired
			}
		}
	}
	return msgProviderUnsupported
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeInvalid(w, []string{err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeInvalid(w, []string{"Callback URL is invalid"})
		return
	}
	req.Owner = r.Header.Get(ownerHeader)

	d, err := s.service.Submit(r.Context(), req.Config, req.CallbackURL)
	if err != nil {
		s.writeAdmitError(w, err, req.Provider)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"id":      d.ID,
		"status":  d.Status,
	})
}

// writeAdmitError maps a failure to start a deployment to its response.
func (s *Server) writeAdmitError(w http.ResponseWriter, err error, p provider.Provider) {
	var verr *job.ValidationError
	switch {
	case errors.As(err, &verr):
		writeInvalid(w, verr.Errors)
	case errors.Is(err, guard.ErrBusy):
		writeJSON(w, http.StatusConflict, map[string]any{
			"success":  false,
			"error":    msgInProgress,
			"provider": p,
		})
	case errors.Is(err, job.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, "deployment queue full")
	default:
		zap.S().Errorf("deploy: start %s deployment: %v", p, err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success":  false,
			"error":    err.Error(),
			"provider": p,
		})
	}
}

func (s *Server) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"deployments": s.store.List(),
	})
}

func (s *Server) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := s.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"deployment": d,
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch err := s.service.Cancel(id); {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"success": true,
			"id":      id,
			"status":  "cancelling",
		})
	case errors.Is(err, job.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, job.ErrFinished):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	p, err := artifact.Decode(raw)
	if err != nil && !errors.Is(err, artifact.ErrMissingIdentity) {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	files, err := artifact.Files(p, r.URL.Query().Get("template"))
	if errors.Is(err, artifact.ErrMissingIdentity) {
		writeError(w, http.StatusBadRequest, msgIdentityRequired)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := artifact.Zip(files)
	if err != nil {
		zap.S().Errorf("download: zip bundle: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to build archive")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", contentDisposition(artifact.FileName(p)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		zap.S().Warnf("download: write archive: %v", err)
	}
}

// contentDisposition builds an attachment header with filename quoted or
// RFC 2231 encoded as needed.
func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
