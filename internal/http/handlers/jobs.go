package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shortform/internal/control"
	"shortform/internal/domain"
	"shortform/internal/middleware"
)

const maxSubmissionBytes = 64 << 20

type submitResponse struct {
	JobID  string        `json:"job_id"`
	Status domain.Status `json:"status"`
}

type reworkRequest struct {
	Stage string `json:"stage"`
}

type reworkResponse struct {
	JobID       string        `json:"job_id"`
	Status      domain.Status `json:"status"`
	ReworkStage string        `json:"rework_stage"`
	StaleStages []string      `json:"stale_stages"`
}

// SubmitJob accepts a multipart submission: text fields describe the request
// and file parts carry the fixed binary assets for the chosen variant.
func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart payload")
		return
	}

	req := control.SubmitRequest{
		Variant: domain.Variant(r.FormValue("variant")),
		Input: domain.Input{
			Topic:              r.FormValue("topic"),
			Script:             r.FormValue("script"),
			ProductBrand:       r.FormValue("product_brand"),
			ProductDescription: r.FormValue("product_description"),
			GameName:           r.FormValue("game_name"),
			UserPrompt:         r.FormValue("user_prompt"),
		},
	}

	var err error
	if req.ProductImage, err = readFilePart(r, "product_image"); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable product_image")
		return
	}
	if req.ClosingStill, err = readFilePart(r, "closing_still"); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable closing_still")
		return
	}
	if req.SoundEffect, err = readFilePart(r, "sound_effect"); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable sound_effect")
		return
	}
	if req.CharacterImage, err = readFilePart(r, "character_image"); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unreadable character_image")
		return
	}

	job, err := a.Control.Submit(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{JobID: job.ID, Status: job.Status})
}

// ResumeJob requests continuation of a failed job.
func (a *App) ResumeJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Control.Resume(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{JobID: job.ID, Status: job.Status})
}

// ReworkJob requests regeneration of a single stage of a finished job.
func (a *App) ReworkJob(w http.ResponseWriter, r *http.Request) {
	var req reworkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Stage == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "stage is required")
		return
	}
	job, stale, err := a.Control.ReworkStage(r.Context(), chi.URLParam(r, "id"), req.Stage)
	if err != nil {
		a.fail(w, err)
		return
	}
	if stale == nil {
		stale = []string{}
	}
	a.json(w, http.StatusAccepted, reworkResponse{
		JobID:       job.ID,
		Status:      job.Status,
		ReworkStage: req.Stage,
		StaleStages: stale,
	})
}

// JobStatus reports progress with a step label in the request locale.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	locale := middleware.LocaleFromContext(r.Context())
	view, err := a.Control.GetStatus(r.Context(), chi.URLParam(r, "id"), locale)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.json(w, http.StatusOK, view)
}

// ExportJobArtifacts streams everything the job has produced as a zip.
func (a *App) ExportJobArtifacts(w http.ResponseWriter, r *http.Request) {
	filename, data, err := a.Control.ExportArtifacts(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(data)
}

func readFilePart(r *http.Request, name string) ([]byte, error) {
	file, _, err := r.FormFile(name)
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}
