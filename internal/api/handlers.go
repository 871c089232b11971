package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vibe-mind/internal/handoff"
	"vibe-mind/internal/imaging"
	"vibe-mind/internal/pipeline"
	"vibe-mind/internal/profile"
	"vibe-mind/internal/registry"
	"vibe-mind/internal/storage"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "Vibe Mind API",
		"version":     "2.0.0",
		"description": "Turns UI screenshots into design handoffs and platform prompts",
		"endpoints": map[string]string{
			"health":         "/api/health",
			"profiles":       "/api/profiles",
			"platforms":      "/api/platforms",
			"analyze":        "/api/analyze",
			"analyze_upload": "/api/analyze-upload",
			"reports":        "/api/reports",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	profiles, platforms := 0, 0
	if s.profiles != nil {
		profiles = s.profiles.Len()
	}
	if s.platforms != nil {
		platforms = s.platforms.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "healthy",
		"timestamp":           s.now().Format(time.RFC3339),
		"profiles_loaded":     profiles,
		"platforms_available": platforms,
		"vision_configured":   s.visionConfigured,
	})
}

func (s *Server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles := map[string]profile.Profile{}
	if s.profiles != nil {
		profiles = s.profiles.All()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "profiles": profiles})
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "profile storage is not configured")
		return
	}
	var p profile.Profile
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	key, err := s.store.Create(p)
	if err != nil {
		writeProfileError(w, err)
		return
	}
	s.logger.Info("profile created", "key", key)
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "key": key})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "profile storage is not configured")
		return
	}
	key := chi.URLParam(r, "key")
	var p profile.Profile
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.store.Update(key, p); err != nil {
		writeProfileError(w, err)
		return
	}
	s.logger.Info("profile updated", "key", key)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "key": key})
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "profile storage is not configured")
		return
	}
	key := chi.URLParam(r, "key")
	if err := s.store.Delete(key); err != nil {
		writeProfileError(w, err)
		return
	}
	s.logger.Info("profile deleted", "key", key)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "key": key})
}

func writeProfileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profile.ErrInvalid), errors.Is(err, profile.ErrInvalidKey):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, profile.ErrExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleListPlatforms(w http.ResponseWriter, r *http.Request) {
	platforms := map[string]any{}
	if s.platforms != nil {
		for key, cfg := range s.platforms.All() {
			platforms[key] = cfg
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "platforms": platforms})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	reports := []storage.Entry{}
	if s.index != nil {
		var err error
		reports, err = s.index.Recent(r.Context(), limit)
		if err != nil {
			s.logger.Error("list reports failed", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to list reports")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "reports": reports})
}

type analyzeRequest struct {
	ImageURL       string `json:"image_url"`
	ImageBase64    string `json:"image_base64"`
	ImageFilename  string `json:"image_filename"`
	Message        string `json:"message"`
	ProfileKey     string `json:"profile_key"`
	PlatformTarget string `json:"platform_target"`
	Mode           string `json:"mode"`
}

type analyzeInput struct {
	image    string
	label    string
	message  string
	profile  string
	platform string
	mode     pipeline.Mode
}

type colorRef struct {
	Hex  string `json:"hex"`
	Name string `json:"name"`
}

type componentRef struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type structuredResult struct {
	AnalysisResult  string         `json:"analysis_result"`
	ConfidenceScore float64        `json:"confidence_score"`
	DesignerProfile string         `json:"designer_profile"`
	PlatformTarget  string         `json:"platform_target"`
	DominantColors  []colorRef     `json:"dominant_colors"`
	Components      []componentRef `json:"components"`
	UncertainFlags  []string       `json:"uncertain_flags"`
	Warnings        []string       `json:"warnings"`
}

type fileRefs struct {
	HandoffFile  *string `json:"handoff_file"`
	RenderedFile *string `json:"rendered_file,omitempty"`
}

type analyzeResponse struct {
	Status           string           `json:"status"`
	StructuredResult structuredResult `json:"structured_result"`
	SummarizedReport string           `json:"summarized_report"`
	Mode             pipeline.Mode    `json:"mode"`
	Rendered         string           `json:"rendered,omitempty"`
	Files            fileRefs         `json:"files"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxUpload)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	mode, err := pipeline.ParseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	in := analyzeInput{
		message:  req.Message,
		profile:  req.ProfileKey,
		platform: req.PlatformTarget,
		mode:     mode,
	}
	switch {
	case strings.TrimSpace(req.ImageBase64) != "":
		in.image = req.ImageBase64
		in.label = req.ImageFilename
		if in.label == "" {
			in.label = "uploaded_image"
		}
	case strings.TrimSpace(req.ImageURL) != "":
		in.image = req.ImageURL
		in.label = req.ImageURL
	default:
		msg := strings.TrimSpace(req.Message)
		if msg == "" {
			writeError(w, http.StatusBadRequest, "No image or message provided")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"structured_result": map[string]any{
				"analysis_result":  "Text analysis: " + msg,
				"confidence_score": 0.8,
			},
			"summarized_report": "Enhanced prompt: " + msg,
		})
		return
	}

	s.analyze(w, r, in)
}

func (s *Server) handleAnalyzeUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	mode, err := pipeline.ParseMode(r.FormValue("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	tmpPath, err := saveTemp(file, header.Filename)
	if tmpPath != "" {
		defer os.Remove(tmpPath)
	}
	if err != nil {
		s.logger.Error("save upload failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	label := header.Filename
	if label == "" {
		label = "uploaded_image"
	}
	s.analyze(w, r, analyzeInput{
		image:    tmpPath,
		label:    label,
		message:  r.FormValue("message"),
		profile:  r.FormValue("profile_key"),
		platform: r.FormValue("platform_target"),
		mode:     mode,
	})
}

// saveTemp copies an upload to a temp file. The returned path is set
// whenever the file was created, even on error, so the caller can remove it.
func saveTemp(src io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\*`) {
		ext = ""
	}
	tmp, err := os.CreateTemp("", "vibe-mind-upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return path, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return path, fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request, in analyzeInput) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	profileKey := strings.TrimSpace(in.profile)
	if profileKey == "" {
		profileKey = defaultProfileKey
	}
	platformKey := strings.TrimSpace(in.platform)
	if platformKey == "" {
		platformKey = defaultPlatformKey
	}

	profileKey, _, err := s.pipeline.ResolveProfile(profileKey, true)
	if err != nil {
		writeError(w, http.StatusNotFound, "No profiles available")
		return
	}

	var projectContext map[string]any
	if msg := strings.TrimSpace(in.message); msg != "" {
		projectContext = map[string]any{"message": msg}
	}

	res, err := s.pipeline.Analyze(ctx, pipeline.Request{
		Image:       in.image,
		Label:       in.label,
		ProfileKey:  profileKey,
		PlatformKey: platformKey,
		Context:     projectContext,
	})
	if err != nil {
		if isInputError(err) {
			writeError(w, http.StatusBadRequest, "Invalid image: "+err.Error())
			return
		}
		s.logger.Error("analysis failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Analysis failed: "+err.Error())
		return
	}

	out := analyzeResponse{
		Status:           "success",
		StructuredResult: structured(res),
		SummarizedReport: truncate(res.Handoff.PromptForPlatform, summaryChars),
		Mode:             in.mode,
	}
	if in.mode != pipeline.ModeJSON {
		rendered, err := s.pipeline.Render(res, in.mode, pipeline.RenderOptions{})
		if err != nil {
			s.logger.Error("render failed", "mode", in.mode, "err", err)
			writeError(w, http.StatusInternalServerError, "Render failed: "+err.Error())
			return
		}
		out.Rendered = rendered
	}

	out.Files = s.persist(r.Context(), res.Handoff, in.mode, out.Rendered)
	writeJSON(w, http.StatusOK, out)
}

// persist writes the handoff, and the rendered output if any. Failures are
// logged and reported as null paths.
func (s *Server) persist(ctx context.Context, h handoff.Handoff, mode pipeline.Mode, rendered string) fileRefs {
	var refs fileRefs
	if s.files == nil {
		return refs
	}

	path, err := s.files.SaveHandoff(h)
	if err != nil {
		s.logger.Warn("could not save handoff", "err", err)
		return refs
	}
	refs.HandoffFile = &path
	s.record(ctx, h, "handoff", path)

	if rendered != "" {
		kind := string(mode) + "_output"
		mdPath, err := s.files.SaveMarkdown(kind, rendered)
		if err != nil {
			s.logger.Warn("could not save rendered output", "mode", mode, "err", err)
			return refs
		}
		refs.RenderedFile = &mdPath
		s.record(ctx, h, string(mode), mdPath)
	}
	return refs
}

func (s *Server) record(ctx context.Context, h handoff.Handoff, kind, path string) {
	if s.index == nil {
		return
	}
	if err := s.index.Record(ctx, h, kind, path); err != nil {
		s.logger.Warn("could not index report", "kind", kind, "err", err)
	}
}

func structured(res pipeline.Result) structuredResult {
	h := res.Handoff
	out := structuredResult{
		AnalysisResult:  h.PromptForPlatform,
		ConfidenceScore: h.ConfidenceScore,
		DesignerProfile: h.DesignerProfile,
		PlatformTarget:  h.PlatformTarget,
		DominantColors:  make([]colorRef, 0, len(h.DominantColors)),
		Components:      make([]componentRef, 0, len(h.Components)),
		UncertainFlags:  h.UncertainFlags,
		Warnings:        res.Warnings,
	}
	for _, c := range h.DominantColors {
		out.DominantColors = append(out.DominantColors, colorRef{Hex: c.Hex, Name: c.Name})
	}
	for _, c := range h.Components {
		out.Components = append(out.Components, componentRef{Type: c.Type, Description: c.Description})
	}
	if out.UncertainFlags == nil {
		out.UncertainFlags = []string{}
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	return out
}

func isInputError(err error) bool {
	return errors.Is(err, imaging.ErrEmptyReference) ||
		errors.Is(err, imaging.ErrUnsupportedImage) ||
		errors.Is(err, os.ErrNotExist)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
