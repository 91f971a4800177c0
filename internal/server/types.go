// Package server provides the HTTP API of the timelapse editor.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/timelapse-editor/internal/geom"
	"github.com/maauso/timelapse-editor/internal/sequence"
	"github.com/maauso/timelapse-editor/internal/task"
)

// DefaultSessionID is used when a request does not name a session.
const DefaultSessionID = "default"

// LoadRequest opens a sequence directory in a session.
type LoadRequest struct {
	// Path is absolute or relative to the timelapse directory.
	Path      string `json:"path" validate:"required"`
	SessionID string `json:"session_id" validate:"max=64"`
}

// PreviewsRequest generates sequence thumbnails.
type PreviewsRequest struct {
	SessionID      string `json:"session_id" validate:"max=64"`
	SampleInterval int    `json:"sample_interval" validate:"min=1"`
	MaxSize        int    `json:"max_size" validate:"min=1,max=4096"`
	// OutputDir defaults to <sequence>_previews next to the sequence.
	OutputDir string `json:"output_dir"`
	Async     bool   `json:"async"`
}

// ExtractFrameRequest copies one frame out of the sequence.
type ExtractFrameRequest struct {
	SessionID  string `json:"session_id" validate:"max=64"`
	Index      *int   `json:"index" validate:"required,min=0"`
	OutputPath string `json:"output_path"`
}

// BatchEditRequest applies one edit to a range of frames.
type BatchEditRequest struct {
	SessionID  string            `json:"session_id" validate:"max=64"`
	EditParams sequence.EditSpec `json:"edit_params"`
	StartIdx   int               `json:"start_idx" validate:"min=0"`
	// EndIdx is inclusive; omitted means the last frame.
	EndIdx    *int   `json:"end_idx" validate:"omitempty,min=0"`
	Interval  int    `json:"interval" validate:"min=1"`
	OutputDir string `json:"output_dir"`
	Async     bool   `json:"async"`
}

// AssembleRequest encodes the sequence into a video.
type AssembleRequest struct {
	SessionID  string     `json:"session_id" validate:"max=64"`
	OutputPath string     `json:"output_path"`
	FPS        int        `json:"fps" validate:"min=1,max=240"`
	Format     string     `json:"format" validate:"oneof=mp4 mov mkv avi"`
	Quality    string     `json:"quality"`
	UseEdited  bool       `json:"use_edited"`
	Resize     *geom.Size `json:"resize"`
	CropRect   *geom.Rect `json:"crop_rect"`
	// PushToS3 uploads the video once it is written.
	PushToS3 bool `json:"push_to_s3"`
	Async    bool `json:"async"`
}

// SaveProjectRequest writes the session state to a project file.
type SaveProjectRequest struct {
	SessionID  string `json:"session_id" validate:"max=64"`
	OutputPath string `json:"output_path"`
}

// LoadProjectRequest restores a session from a project file.
type LoadProjectRequest struct {
	ProjectPath string `json:"project_path" validate:"required"`
	SessionID   string `json:"session_id" validate:"max=64"`
}

// CloseRequest ends a session.
type CloseRequest struct {
	SessionID string `json:"session_id" validate:"max=64"`
}

// Response is the envelope every JSON body shares.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SessionResponse is returned by load and load_project.
type SessionResponse struct {
	Response
	Metadata  sequence.Metadata `json:"metadata"`
	SessionID string            `json:"session_id"`
}

// ListResponse lists the sequences under the timelapse directory.
type ListResponse struct {
	Response
	Timelapses []sequence.Summary `json:"timelapses"`
}

// PreviewsResponse describes generated thumbnails.
type PreviewsResponse struct {
	Response
	Previews   []string           `json:"previews"`
	PreviewDir string             `json:"preview_dir"`
	Skipped    []sequence.Skipped `json:"skipped,omitempty"`
}

// ExtractFrameResponse carries the extracted file path.
type ExtractFrameResponse struct {
	Response
	Path string `json:"path"`
}

// BatchEditResponse describes a finished batch edit.
type BatchEditResponse struct {
	Response
	OutputDir string             `json:"output_dir"`
	Processed int                `json:"processed"`
	Skipped   []sequence.Skipped `json:"skipped,omitempty"`
}

// AssembleResponse describes an assembled video.
type AssembleResponse struct {
	Response
	OutputPath string `json:"output_path"`
	VideoURL   string `json:"video_url,omitempty"`
}

// SaveProjectResponse carries the written project path.
type SaveProjectResponse struct {
	Response
	ProjectPath string `json:"project_path"`
}

// TaskAcceptedResponse is returned when an operation was queued as a task.
type TaskAcceptedResponse struct {
	Response
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskResponse is the HTTP view of a background task.
type TaskResponse struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	OutputPath  string     `json:"output_path,omitempty"`
	VideoURL    string     `json:"video_url,omitempty"`
	Processed   int        `json:"processed"`
	Skipped     []int      `json:"skipped,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TaskListResponse lists background tasks, newest first.
type TaskListResponse struct {
	Response
	Tasks []TaskResponse `json:"tasks"`
}

func newTaskResponse(t *task.Task) TaskResponse {
	resp := TaskResponse{
		ID:         t.ID,
		SessionID:  t.SessionID,
		Kind:       string(t.Kind),
		Status:     string(t.Status),
		Progress:   t.Progress,
		OutputPath: t.OutputPath,
		VideoURL:   t.VideoURL,
		Processed:  t.Processed,
		Skipped:    t.Skipped,
		Error:      t.Error,
		CreatedAt:  t.CreatedAt,
	}
	if !t.CompletedAt.IsZero() {
		completed := t.CompletedAt
		resp.CompletedAt = &completed
	}
	return resp
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Success bool `json:"success"`
	// Message is the human-readable error message.
	Message string `json:"message"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
}
