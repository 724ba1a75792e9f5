// Package webapi serves the brand kit editor and generation runs as JSON for
// a browser client.
package webapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"creator-studio-ai/internal/brand"
	"creator-studio-ai/internal/credential"
	"creator-studio-ai/internal/generate"
	"creator-studio-ai/internal/platform"
)

const sessionCookie = "kit_session"

type Options struct {
	Kits               *brand.Store
	Orchestrator       *generate.Orchestrator
	Gate               *credential.Gate
	MaxAttachmentBytes int64
	Logger             *slog.Logger
}

type Server struct {
	kits     *brand.Store
	orch     *generate.Orchestrator
	gate     *credential.Gate
	maxBytes int64
	logger   *slog.Logger
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	kits := opts.Kits
	if kits == nil {
		kits = brand.NewStore()
	}
	maxBytes := opts.MaxAttachmentBytes
	if maxBytes <= 0 {
		maxBytes = brand.DefaultMaxAttachmentBytes
	}
	return &Server{
		kits:     kits,
		orch:     opts.Orchestrator,
		gate:     opts.Gate,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/platforms", s.handlePlatforms)
	mux.HandleFunc("GET /api/kit", s.handleGetKit)
	mux.HandleFunc("POST /api/kit", s.handleUpdateKit)
	mux.HandleFunc("GET /api/credential", s.handleCredential)
	mux.HandleFunc("POST /api/credential/connect", s.handleConnect)
	mux.HandleFunc("POST /api/generate", s.handleGenerate)
	mux.HandleFunc("GET /api/run", s.handleRun)
	return withLogging(mux, s.logger)
}

type apiError struct {
	Error string `json:"error"`
}

type platformJSON struct {
	ID          platform.ID       `json:"id"`
	Label       string            `json:"label"`
	Category    platform.Category `json:"category"`
	AspectRatio string            `json:"aspect_ratio"`
	Description string            `json:"description"`
	TargetUsage string            `json:"target_usage"`
}

type attachmentJSON struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type"`
	Bytes    int    `json:"bytes"`
}

type kitJSON struct {
	Platforms         []platform.ID   `json:"platforms"`
	Headline          string          `json:"headline"`
	Tagline           string          `json:"tagline"`
	CTA               string          `json:"cta"`
	Theme             string          `json:"theme"`
	Primary           brand.Color     `json:"primary"`
	Secondary         brand.Color     `json:"secondary"`
	Accent            brand.Color     `json:"accent"`
	OptimizeSafeZones bool            `json:"optimize_safe_zones"`
	Logo              *attachmentJSON `json:"logo"`
	Headshot          *attachmentJSON `json:"headshot"`
	Generating        bool            `json:"generating"`
}

type resultJSON struct {
	Platform    platform.ID            `json:"platform"`
	Label       string                 `json:"label"`
	AspectRatio string                 `json:"aspect_ratio"`
	Status      generate.Status        `json:"status"`
	Image       string                 `json:"image,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Omitted     []brand.AttachmentKind `json:"omitted,omitempty"`
}

type runJSON struct {
	ID         string       `json:"id,omitempty"`
	Generating bool         `json:"generating"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Results    []resultJSON `json:"results"`
}

type credentialJSON struct {
	State credential.State `json:"state"`
}

func (s *Server) handlePlatforms(w http.ResponseWriter, r *http.Request) {
	all := platform.All()
	out := make([]platformJSON, 0, len(all))
	for _, d := range all {
		out = append(out, platformJSON{
			ID:          d.ID,
			Label:       d.Label,
			Category:    d.Category,
			AspectRatio: d.AspectRatio,
			Description: d.Description,
			TargetUsage: d.TargetUsage,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"platforms":  out,
		"categories": platform.Categories(),
	})
}

func (s *Server) handleGetKit(w http.ResponseWriter, r *http.Request) {
	key := s.session(w, r)
	writeJSON(w, http.StatusOK, s.kitView(key, s.kits.Get(key).Config))
}

func (s *Server) handleUpdateKit(w http.ResponseWriter, r *http.Request) {
	key := s.session(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, 2*s.maxBytes+(1<<20))
	if strings.HasPrefix(r.Header.Get("content-type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(2 * s.maxBytes); err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid multipart form"})
			return
		}
	} else if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid form"})
		return
	}

	uploads := map[brand.AttachmentKind]*brand.Attachment{}
	for _, kind := range []brand.AttachmentKind{brand.KindLogo, brand.KindHeadshot} {
		a, err := s.readUpload(r, kind)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, brand.ErrAttachmentTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			writeJSON(w, status, apiError{Error: err.Error()})
			return
		}
		if a != nil {
			uploads[kind] = a
		}
	}

	st, err := s.kits.Update(key, func(st *brand.Session) error {
		next := st.Config.Snapshot()
		if err := applyForm(&next, r, uploads); err != nil {
			return err
		}
		st.Config = next
		return nil
	})
	switch {
	case errors.Is(err, brand.ErrAttachmentOccupied):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusBadRequest, apiError{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, s.kitView(key, st.Config))
}

// applyForm edits cfg with the fields present in the request. Removals run
// before uploads so a slot can be replaced in one request.
func applyForm(cfg *brand.Configuration, r *http.Request, uploads map[brand.AttachmentKind]*brand.Attachment) error {
	if _, ok := r.Form["platforms"]; ok {
		ids, err := parsePlatforms(r.FormValue("platforms"))
		if err != nil {
			return err
		}
		if err := cfg.SetPlatforms(ids); err != nil {
			return err
		}
	}

	for _, field := range []brand.Field{brand.FieldHeadline, brand.FieldTagline, brand.FieldCTA, brand.FieldTheme} {
		if _, ok := r.Form[string(field)]; ok {
			if err := cfg.SetField(field, r.FormValue(string(field))); err != nil {
				return err
			}
		}
	}

	if err := cfg.SetColors(r.FormValue("primary"), r.FormValue("secondary"), r.FormValue("accent")); err != nil {
		return err
	}

	if _, ok := r.Form["optimize_safe_zones"]; ok {
		cfg.OptimizeSafeZones = parseBool(r.FormValue("optimize_safe_zones"))
	}

	for _, kind := range []brand.AttachmentKind{brand.KindLogo, brand.KindHeadshot} {
		if parseBool(r.FormValue("remove_" + string(kind))) {
			cfg.Detach(kind)
		}
	}
	for _, kind := range []brand.AttachmentKind{brand.KindLogo, brand.KindHeadshot} {
		if a := uploads[kind]; a != nil {
			if err := cfg.Attach(kind, *a); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Server) readUpload(r *http.Request, kind brand.AttachmentKind) (*brand.Attachment, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	file, header, err := r.FormFile(string(kind))
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	defer file.Close()

	data, err := readAll(file, s.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	a := brand.Attachment{
		Kind:     kind,
		Name:     header.Filename,
		MimeType: brand.NormalizeMimeType(header.Header.Get("content-type"), data),
		Data:     data,
		MaxBytes: s.maxBytes,
	}
	if _, err := a.Load(); err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	return &a, nil
}

func readAll(f multipart.File, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, brand.ErrAttachmentTooLarge
	}
	return data, nil
}

func (s *Server) handleCredential(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, credentialJSON{State: s.checkCredential(r)})
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	state := credential.Unavailable
	if s.gate != nil {
		state = s.gate.Connect(r.Context())
	}
	writeJSON(w, http.StatusOK, credentialJSON{State: state})
}

func (s *Server) checkCredential(r *http.Request) credential.State {
	if s.gate == nil {
		return credential.Unavailable
	}
	return s.gate.Check(r.Context())
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.orch == nil {
		writeJSON(w, http.StatusServiceUnavailable, apiError{Error: "generation is not configured"})
		return
	}
	key := s.session(w, r)

	run, err := s.orch.Submit(r.Context(), key, s.kits.Get(key).Config, nil)
	switch {
	case errors.Is(err, generate.ErrCredentialUnavailable):
		writeJSON(w, http.StatusPreconditionFailed, apiError{Error: err.Error()})
		return
	case errors.Is(err, generate.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, apiError{Error: err.Error()})
		return
	case err != nil:
		s.logger.Error("generate submit failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, apiError{Error: "failed to start generation"})
		return
	case run == nil:
		writeJSON(w, http.StatusOK, runJSON{Results: []resultJSON{}})
		return
	}

	writeJSON(w, http.StatusAccepted, s.runView(key, run))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	key := s.session(w, r)
	var run *generate.Run
	if s.orch != nil {
		run, _ = s.orch.Current(key)
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "no generation yet"})
		return
	}
	writeJSON(w, http.StatusOK, s.runView(key, run))
}

func (s *Server) kitView(key string, cfg brand.Configuration) kitJSON {
	out := kitJSON{
		Platforms:         cfg.Platforms,
		Headline:          cfg.Headline,
		Tagline:           cfg.Tagline,
		CTA:               cfg.CTA,
		Theme:             cfg.Theme,
		Primary:           cfg.Primary,
		Secondary:         cfg.Secondary,
		Accent:            cfg.Accent,
		OptimizeSafeZones: cfg.OptimizeSafeZones,
		Logo:              attachmentView(cfg.Logo),
		Headshot:          attachmentView(cfg.Headshot),
	}
	if out.Platforms == nil {
		out.Platforms = []platform.ID{}
	}
	if s.orch != nil {
		out.Generating = s.orch.Generating(key)
	}
	return out
}

func attachmentView(a *brand.Attachment) *attachmentJSON {
	if a == nil {
		return nil
	}
	return &attachmentJSON{Name: a.Name, MimeType: a.MimeType, Bytes: len(a.Data)}
}

func (s *Server) runView(key string, run *generate.Run) runJSON {
	out := runJSON{
		ID:         run.ID,
		Generating: s.orch.Generating(key),
		StartedAt:  &run.StartedAt,
	}
	if t := run.FinishedAt(); !t.IsZero() {
		out.FinishedAt = &t
	}
	for _, res := range run.Snapshot() {
		item := resultJSON{
			Platform:    res.Platform,
			Label:       res.Label,
			AspectRatio: res.AspectRatio,
			Status:      res.Status,
			Error:       res.Error,
			Omitted:     res.Omitted,
		}
		if res.Image != nil {
			item.Image = dataURL(res.Image.MimeType, res.Image.Data)
		}
		out.Results = append(out.Results, item)
	}
	if out.Results == nil {
		out.Results = []resultJSON{}
	}
	return out
}

// session returns the caller's session id, issuing a cookie when it is
// missing or malformed.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((30 * 24 * time.Hour).Seconds()),
	})
	return id
}

func parsePlatforms(raw string) ([]platform.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var ids []platform.ID
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			return nil, fmt.Errorf("invalid platforms: %w", err)
		}
		return ids, nil
	}
	var ids []platform.ID
	for _, p := range splitCSV(raw) {
		ids = append(ids, platform.ID(p))
	}
	return ids, nil
}

func dataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseBool(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func splitCSV(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func withLogging(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur_ms", time.Since(start).Milliseconds())
	})
}
