package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"server/internal/domain"
	"server/internal/service"
)

type generateResponse struct {
	GenerationID string `json:"generation_id"`
	Image        string `json:"image"`
	LogoApplied  bool   `json:"logo_applied"`
}

// Generate handles POST /v1/generate: a multipart upload carrying the dog
// photo under the "image" field (the legacy "file" field name is accepted).
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	// Cap the body slightly above the image limit so multipart framing does
	// not push a maximal valid upload over the edge.
	maxBody := a.MaxUploadBytes + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	if err := r.ParseMultipartForm(maxBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, r, http.StatusRequestEntityTooLarge, "file_too_large", "request body too large")
			return
		}
		a.error(w, r, http.StatusBadRequest, "bad_request", "expected a multipart form upload")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "missing image field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "could not read upload")
		return
	}

	res, err := a.Generator.Generate(r.Context(), service.Input{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		a.generateError(w, r, err)
		return
	}

	a.json(w, http.StatusOK, generateResponse{
		GenerationID: res.RecordID,
		Image:        base64.StdEncoding.EncodeToString(res.Image),
		LogoApplied:  res.LogoApplied,
	})
}

// generateError maps the pipeline's failure taxonomy onto HTTP statuses.
func (a *App) generateError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		switch verr.Reason {
		case domain.ValidationTooLarge:
			a.error(w, r, http.StatusRequestEntityTooLarge, "file_too_large", verr.Message)
		case domain.ValidationBadType:
			a.error(w, r, http.StatusUnsupportedMediaType, "unsupported_type", verr.Message)
		default:
			a.error(w, r, http.StatusBadRequest, "invalid_image", verr.Message)
		}
		return
	}

	var uerr *domain.UpstreamError
	if errors.As(err, &uerr) {
		code := "upstream_error"
		if uerr.Kind == domain.UpstreamRemoteRejected {
			code = "upstream_rejected"
		}
		a.error(w, r, http.StatusBadGateway, code, uerr.Error())
		return
	}

	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		a.Logger.Error().Err(err).Msg("generate: persistence failure")
		a.error(w, r, http.StatusInternalServerError, "persistence_failed", "record write failed")
		return
	}

	a.Logger.Error().Err(err).Msg("generate: unexpected failure")
	a.error(w, r, http.StatusInternalServerError, "internal", err.Error())
}
