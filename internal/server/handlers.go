package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/timelapse-editor/internal/geom"
	"github.com/maauso/timelapse-editor/internal/imageops"
	"github.com/maauso/timelapse-editor/internal/media"
	"github.com/maauso/timelapse-editor/internal/sequence"
	"github.com/maauso/timelapse-editor/internal/session"
	"github.com/maauso/timelapse-editor/internal/task"
)

// Default request values.
const (
	defaultSampleInterval  = 10
	defaultPreviewMaxSize  = 300
	defaultFramePreviewMax = 800
	defaultFPS             = 24
	defaultFormat          = "mp4"
	defaultQuality         = "high"
)

var errNoPreviews = errors.New("no preview could be generated")

// Uploader publishes a finished video and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader) (string, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	sessions     *session.Registry
	tasks        *task.Service
	uploader     Uploader
	validator    *validator.Validate
	logger       *slog.Logger
	timelapseDir string
	outputDir    string
	editorOpts   []sequence.Option
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithTimelapseDir sets the directory relative sequence paths resolve against.
func WithTimelapseDir(dir string) HandlerOption {
	return func(h *Handlers) {
		h.timelapseDir = dir
	}
}

// WithOutputDir sets the root for default video and project paths.
func WithOutputDir(dir string) HandlerOption {
	return func(h *Handlers) {
		h.outputDir = dir
	}
}

// WithUploader enables push_to_s3 on assemble.
func WithUploader(u Uploader) HandlerOption {
	return func(h *Handlers) {
		h.uploader = u
	}
}

// WithEditorOptions sets the options every opened editor is built with.
func WithEditorOptions(opts ...sequence.Option) HandlerOption {
	return func(h *Handlers) {
		h.editorOpts = append(h.editorOpts, opts...)
	}
}

// NewHandlers creates a new Handlers instance.
// A nil task service disables async requests.
func NewHandlers(sessions *session.Registry, tasks *task.Service, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		sessions:  sessions,
		tasks:     tasks,
		validator: validator.New(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Sessions: h.sessions.Len()})
}

// Load handles POST /load requests.
func (h *Handlers) Load(w http.ResponseWriter, r *http.Request) {
	req := LoadRequest{SessionID: DefaultSessionID}
	if !h.decode(w, r, &req) {
		return
	}

	path := req.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(h.timelapseDir, path)
	}
	path = filepath.Clean(path)

	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("Timelapse sequence not found: %s", filepath.Base(path)), "SEQUENCE_NOT_FOUND")
		return
	}

	editor := sequence.NewEditor(path, h.editorOpts...)
	s, ok := h.open(w, req.SessionID, editor)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Response:  okResponse(fmt.Sprintf("Successfully loaded timelapse sequence: %s", filepath.Base(path))),
		Metadata:  editor.Metadata(),
		SessionID: s.ID(),
	})
}

// List handles GET /list requests.
func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := sequence.ListSequences(h.timelapseDir)
	if err != nil {
		if errors.Is(err, sequence.ErrSequenceNotFound) {
			writeError(w, http.StatusNotFound, "Timelapse directory not found", "TIMELAPSE_DIR_NOT_FOUND")
			return
		}
		h.logger.Error("failed to list timelapses", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Error listing timelapses", "LIST_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{Response: Response{Success: true}, Timelapses: summaries})
}

// Frame handles GET /frame/{index} requests by serving the original file.
func (h *Handlers) Frame(w http.ResponseWriter, r *http.Request) {
	index, ok := frameIndex(w, r)
	if !ok {
		return
	}
	s, ok := h.lookup(w, r.URL.Query().Get("session_id"))
	if !ok {
		return
	}

	path, found := s.Editor().FramePath(index)
	if !found {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid frame index: %d", index), "INVALID_FRAME_INDEX")
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("inline; filename=%q", fmt.Sprintf("frame_%04d%s", index, filepath.Ext(path))))
	http.ServeFile(w, r, path)
}

// FramePreview handles GET /frame_preview/{index} requests with a JPEG thumbnail.
func (h *Handlers) FramePreview(w http.ResponseWriter, r *http.Request) {
	index, ok := frameIndex(w, r)
	if !ok {
		return
	}
	maxSize := defaultFramePreviewMax
	if v := r.URL.Query().Get("max_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "max_size must be a positive integer", "VALIDATION_ERROR")
			return
		}
		maxSize = n
	}
	s, ok := h.lookup(w, r.URL.Query().Get("session_id"))
	if !ok {
		return
	}

	img, err := s.Editor().RenderFramePreview(r.Context(), index, maxSize)
	if err != nil {
		if errors.Is(err, sequence.ErrFrameNotFound) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid frame index: %d", index), "INVALID_FRAME_INDEX")
			return
		}
		writeError(w, http.StatusInternalServerError,
			fmt.Sprintf("Could not generate preview for frame %d", index), "PREVIEW_FAILED")
		return
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(sequence.PreviewQuality)); err != nil {
		h.logger.Error("failed to encode frame preview",
			slog.Int("index", index),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "Error generating frame preview", "PREVIEW_FAILED")
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"frame_preview_%04d.jpg\"", index))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Previews handles POST /previews requests.
func (h *Handlers) Previews(w http.ResponseWriter, r *http.Request) {
	req := PreviewsRequest{
		SessionID:      DefaultSessionID,
		SampleInterval: defaultSampleInterval,
		MaxSize:        defaultPreviewMaxSize,
	}
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := h.claim(w, req.SessionID)
	if !ok {
		return
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = siblingDir(s.Editor().Path(), "_previews")
	}

	if req.Async {
		h.submit(w, r, s, task.KindPreviews, func(ctx context.Context) (task.Result, error) {
			res, err := generatePreviews(ctx, s.Editor(), outputDir, req.SampleInterval, req.MaxSize)
			if res == nil {
				return task.Result{}, err
			}
			return task.Result{
				OutputPath: res.OutputDir,
				Processed:  len(res.Paths),
				Skipped:    skippedIndices(res.Skipped),
			}, err
		})
		return
	}
	defer s.Unlock()

	res, err := generatePreviews(r.Context(), s.Editor(), outputDir, req.SampleInterval, req.MaxSize)
	if err != nil {
		h.writeOperationError(w, "generate previews", err)
		return
	}

	names := make([]string, 0, len(res.Paths))
	for _, p := range res.Paths {
		names = append(names, filepath.Base(p))
	}
	writeJSON(w, http.StatusOK, PreviewsResponse{
		Response:   okResponse(fmt.Sprintf("Generated %d preview thumbnails", len(names))),
		Previews:   names,
		PreviewDir: res.OutputDir,
		Skipped:    res.Skipped,
	})
}

// ExtractFrame handles POST /extract_frame requests.
func (h *Handlers) ExtractFrame(w http.ResponseWriter, r *http.Request) {
	req := ExtractFrameRequest{SessionID: DefaultSessionID}
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := h.claim(w, req.SessionID)
	if !ok {
		return
	}
	defer s.Unlock()

	path, err := s.Editor().ExtractFrame(r.Context(), *req.Index, req.OutputPath)
	if err != nil {
		h.writeOperationError(w, "extract frame", err)
		return
	}

	writeJSON(w, http.StatusOK, ExtractFrameResponse{
		Response: okResponse(fmt.Sprintf("Frame %d extracted", *req.Index)),
		Path:     path,
	})
}

// BatchEdit handles POST /batch_edit requests.
func (h *Handlers) BatchEdit(w http.ResponseWriter, r *http.Request) {
	req := BatchEditRequest{SessionID: DefaultSessionID, Interval: 1}
	if !h.decode(w, r, &req) {
		return
	}
	if req.EditParams.IsEmpty() {
		writeError(w, http.StatusBadRequest, "Edit parameters are required", "VALIDATION_ERROR")
		return
	}
	if err := req.EditParams.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	s, ok := h.claim(w, req.SessionID)
	if !ok {
		return
	}

	opts := sequence.BatchOptions{
		OutputDir: req.OutputDir,
		Start:     req.StartIdx,
		End:       req.EndIdx,
		Interval:  req.Interval,
	}

	if req.Async {
		h.submit(w, r, s, task.KindBatchEdit, func(ctx context.Context) (task.Result, error) {
			res, err := s.Editor().BatchEdit(ctx, req.EditParams, opts)
			if res == nil {
				return task.Result{}, err
			}
			return task.Result{
				OutputPath: res.OutputDir,
				Processed:  res.ProcessedCount(),
				Skipped:    res.SkippedIndices(),
			}, err
		})
		return
	}
	defer s.Unlock()

	res, err := s.Editor().BatchEdit(r.Context(), req.EditParams, opts)
	if err != nil {
		h.writeOperationError(w, "batch edit", err)
		return
	}

	writeJSON(w, http.StatusOK, BatchEditResponse{
		Response:  okResponse("Frames batch edited successfully"),
		OutputDir: res.OutputDir,
		Processed: res.ProcessedCount(),
		Skipped:   res.Skipped,
	})
}

// Assemble handles POST /assemble requests.
func (h *Handlers) Assemble(w http.ResponseWriter, r *http.Request) {
	req := AssembleRequest{
		SessionID: DefaultSessionID,
		FPS:       defaultFPS,
		Format:    defaultFormat,
		Quality:   defaultQuality,
		UseEdited: true,
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := validateGeometry(req.Resize, req.CropRect); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}
	if req.PushToS3 && h.uploader == nil {
		writeError(w, http.StatusBadRequest, "S3 storage is not configured", "S3_NOT_CONFIGURED")
		return
	}
	s, ok := h.claim(w, req.SessionID)
	if !ok {
		return
	}

	if req.OutputPath == "" {
		name := filepath.Base(s.Editor().Path())
		req.OutputPath = filepath.Join(h.outputDir, "processed_videos", fmt.Sprintf("%s_video.%s", name, req.Format))
	}

	if req.Async {
		h.submit(w, r, s, task.KindAssemble, func(ctx context.Context) (task.Result, error) {
			return h.assemble(ctx, s.Editor(), req)
		})
		return
	}
	defer s.Unlock()

	res, err := h.assemble(r.Context(), s.Editor(), req)
	if err != nil {
		h.writeOperationError(w, "assemble video", err)
		return
	}

	writeJSON(w, http.StatusOK, AssembleResponse{
		Response:   okResponse("Video assembled successfully"),
		OutputPath: res.OutputPath,
		VideoURL:   res.VideoURL,
	})
}

// SaveProject handles POST /save_project requests.
func (h *Handlers) SaveProject(w http.ResponseWriter, r *http.Request) {
	req := SaveProjectRequest{SessionID: DefaultSessionID}
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := h.claim(w, req.SessionID)
	if !ok {
		return
	}
	defer s.Unlock()

	output := req.OutputPath
	if output == "" {
		name := filepath.Base(s.Editor().Path())
		output = filepath.Join(h.outputDir, "timelapse_projects", name+"_project.json")
	}

	if err := s.Editor().SaveProject(output); err != nil {
		h.writeOperationError(w, "save project", err)
		return
	}

	writeJSON(w, http.StatusOK, SaveProjectResponse{
		Response:    okResponse("Project saved successfully"),
		ProjectPath: output,
	})
}

// LoadProject handles POST /load_project requests.
func (h *Handlers) LoadProject(w http.ResponseWriter, r *http.Request) {
	req := LoadProjectRequest{SessionID: DefaultSessionID}
	if !h.decode(w, r, &req) {
		return
	}

	if info, err := os.Stat(req.ProjectPath); err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("Project file not found: %s", filepath.Base(req.ProjectPath)), "PROJECT_NOT_FOUND")
		return
	}

	editor, err := sequence.LoadProject(req.ProjectPath, h.editorOpts...)
	if err != nil {
		h.writeOperationError(w, "load project", err)
		return
	}

	s, ok := h.open(w, req.SessionID, editor)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, SessionResponse{
		Response:  okResponse(fmt.Sprintf("Successfully loaded project: %s", filepath.Base(req.ProjectPath))),
		Metadata:  editor.Metadata(),
		SessionID: s.ID(),
	})
}

// Close handles POST /close requests.
func (h *Handlers) Close(w http.ResponseWriter, r *http.Request) {
	req := CloseRequest{SessionID: DefaultSessionID}
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.sessions.Close(sessionOrDefault(req.SessionID)); err != nil {
		writeError(w, http.StatusNotFound, "Session not found", "SESSION_NOT_FOUND")
		return
	}

	writeJSON(w, http.StatusOK, okResponse(fmt.Sprintf("Editing session %s closed", sessionOrDefault(req.SessionID))))
}

// GetTask handles GET /tasks/{id} requests.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	if h.tasks == nil {
		writeError(w, http.StatusNotFound, "task not found", "TASK_NOT_FOUND")
		return
	}
	taskID := chi.URLParam(r, "id")

	found, err := h.tasks.Get(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found", "TASK_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get task",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get task", "TASK_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, newTaskResponse(found))
}

// ListTasks handles GET /tasks requests, optionally filtered by session_id.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	resp := TaskListResponse{Response: Response{Success: true}, Tasks: make([]TaskResponse, 0)}
	if h.tasks == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	var (
		tasks []*task.Task
		err   error
	)
	if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
		tasks, err = h.tasks.ListBySession(r.Context(), sessionID)
	} else {
		tasks, err = h.tasks.List(r.Context())
	}
	if err != nil {
		h.logger.Error("failed to list tasks", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list tasks", "TASK_FETCH_FAILED")
		return
	}

	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, newTaskResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) assemble(ctx context.Context, editor *sequence.Editor, req AssembleRequest) (task.Result, error) {
	out, err := editor.AssembleVideo(ctx, sequence.AssembleRequest{
		OutputPath: req.OutputPath,
		FPS:        req.FPS,
		Format:     req.Format,
		Quality:    media.ParseQuality(req.Quality),
		UseEdited:  req.UseEdited,
		Resize:     req.Resize,
		Crop:       req.CropRect,
	})
	if err != nil {
		return task.Result{}, err
	}

	res := task.Result{OutputPath: out, Processed: editor.FrameCount()}
	if !req.PushToS3 {
		return res, nil
	}

	url, err := h.publish(ctx, out)
	if err != nil {
		return res, err
	}
	res.VideoURL = url
	return res, nil
}

func (h *Handlers) publish(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- path was produced by the assembler
	if err != nil {
		return "", fmt.Errorf("open video: %w", err)
	}
	defer func() { _ = f.Close() }()

	url, err := h.uploader.Upload(ctx, "videos/"+filepath.Base(path), f)
	if err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}
	h.logger.Info("video uploaded", slog.String("path", path), slog.String("url", url))
	return url, nil
}

// submit runs work as a background task. The session stays claimed until
// the task finishes.
func (h *Handlers) submit(w http.ResponseWriter, r *http.Request, s *session.Session, kind task.Kind,
	work func(ctx context.Context) (task.Result, error)) {
	if h.tasks == nil {
		s.Unlock()
		writeError(w, http.StatusBadRequest, "background tasks are not enabled", "ASYNC_DISABLED")
		return
	}

	t, err := h.tasks.Submit(r.Context(), s.ID(), kind, func(ctx context.Context, report func(int)) (task.Result, error) {
		defer s.Unlock()
		editor := s.Editor()
		editor.SetProgress(func(done, total int) {
			if total > 0 {
				report(done * 100 / total)
			}
		})
		defer editor.SetProgress(nil)
		return work(ctx)
	})
	if err != nil {
		s.Unlock()
		h.logger.Error("failed to submit task",
			slog.String("session_id", s.ID()),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to create task", "TASK_CREATION_FAILED")
		return
	}

	writeJSON(w, http.StatusAccepted, TaskAcceptedResponse{
		Response: okResponse(fmt.Sprintf("%s queued", kind)),
		TaskID:   t.ID,
		Status:   string(t.Status),
	})
}

// decode reads a JSON body into dst and validates it.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "Invalid request format", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

func (h *Handlers) lookup(w http.ResponseWriter, sessionID string) (*session.Session, bool) {
	s, err := h.sessions.Get(sessionOrDefault(sessionID))
	if err != nil {
		writeError(w, http.StatusNotFound, "No timelapse loaded in this session", "SESSION_NOT_FOUND")
		return nil, false
	}
	return s, true
}

// claim looks up the session and takes its operation lock.
func (h *Handlers) claim(w http.ResponseWriter, sessionID string) (*session.Session, bool) {
	s, ok := h.lookup(w, sessionID)
	if !ok {
		return nil, false
	}
	if err := s.TryLock(); err != nil {
		writeError(w, http.StatusConflict, "Another operation is running in this session", "SESSION_BUSY")
		return nil, false
	}
	return s, true
}

func (h *Handlers) open(w http.ResponseWriter, sessionID string, editor *sequence.Editor) (*session.Session, bool) {
	s, err := h.sessions.Open(sessionID, editor)
	switch {
	case err == nil:
		return s, true
	case errors.Is(err, session.ErrInvalidSessionID):
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
	case errors.Is(err, session.ErrSessionBusy):
		writeError(w, http.StatusConflict, "Another operation is running in this session", "SESSION_BUSY")
	case errors.Is(err, session.ErrRegistryFull):
		writeError(w, http.StatusServiceUnavailable, "Too many open sessions", "TOO_MANY_SESSIONS")
	default:
		h.logger.Error("failed to open session", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to open session", "SESSION_OPEN_FAILED")
	}
	return nil, false
}

// writeOperationError maps editor errors to HTTP statuses.
func (h *Handlers) writeOperationError(w http.ResponseWriter, op string, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		attrs := []any{slog.String("operation", op), slog.String("error", err.Error())}
		var ffErr *media.FFmpegError
		if errors.As(err, &ffErr) {
			attrs = append(attrs, slog.String("stderr", ffErr.Stderr))
		}
		h.logger.Error("operation failed", attrs...)
	}
	writeError(w, status, fmt.Sprintf("Failed to %s: %v", op, err), code)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, sequence.ErrSequenceNotFound):
		return http.StatusNotFound, "SEQUENCE_NOT_FOUND"
	case errors.Is(err, sequence.ErrFrameNotFound):
		return http.StatusBadRequest, "INVALID_FRAME_INDEX"
	case errors.Is(err, sequence.ErrEmptySequence):
		return http.StatusBadRequest, "EMPTY_SEQUENCE"
	case errors.Is(err, sequence.ErrInvalidRange),
		errors.Is(err, sequence.ErrInvalidInterval),
		errors.Is(err, sequence.ErrInvalidPreviewSize),
		errors.Is(err, geom.ErrInvalidRect),
		errors.Is(err, geom.ErrInvalidSize),
		errors.Is(err, imageops.ErrUnknownFilter),
		errors.Is(err, media.ErrInvalidFrameRate),
		errors.Is(err, media.ErrOutputRequired):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, errNoPreviews):
		return http.StatusInternalServerError, "PREVIEW_FAILED"
	default:
		return http.StatusInternalServerError, "OPERATION_FAILED"
	}
}

func generatePreviews(ctx context.Context, editor *sequence.Editor, outputDir string, interval, maxSize int) (*sequence.PreviewResult, error) {
	res, err := editor.GenerateSequencePreview(ctx, outputDir, interval, maxSize)
	if err != nil {
		return res, err
	}
	if len(res.Paths) == 0 {
		return res, errNoPreviews
	}
	return res, nil
}

func validateGeometry(resize *geom.Size, crop *geom.Rect) error {
	if resize != nil {
		if err := resize.Validate(); err != nil {
			return fmt.Errorf("resize: %w", err)
		}
	}
	if crop != nil {
		if err := crop.Validate(); err != nil {
			return fmt.Errorf("crop_rect: %w", err)
		}
	}
	return nil
}

func frameIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "frame index must be a non-negative integer", "INVALID_FRAME_INDEX")
		return 0, false
	}
	return index, true
}

func skippedIndices(skipped []sequence.Skipped) []int {
	out := make([]int, 0, len(skipped))
	for _, s := range skipped {
		out = append(out, s.Index)
	}
	return out
}

// siblingDir returns <parent>/<name><suffix> for a sequence directory.
func siblingDir(path, suffix string) string {
	return filepath.Join(filepath.Dir(path), filepath.Base(path)+suffix)
}

func sessionOrDefault(id string) string {
	if id == "" {
		return DefaultSessionID
	}
	return id
}

func okResponse(message string) Response {
	return Response{Success: true, Message: message}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Success: false,
		Message: message,
		Code:    code,
	})
}
