package domain

import "time"

// Model describes a locally available model.
type Model struct {
	Name       string       `json:"name"`
	Model      string       `json:"model,omitempty"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Digest     string       `json:"digest,omitempty"`
	Details    ModelDetails `json:"details,omitempty"`
}

// ModelDetails carries the format metadata reported for a model.
type ModelDetails struct {
	Format            string `json:"format,omitempty"`
	Family            string `json:"family,omitempty"`
	ParameterSize     string `json:"parameter_size,omitempty"`
	QuantizationLevel string `json:"quantization_level,omitempty"`
}

// ListLocalModelsResponse is returned by GET /tags.
type ListLocalModelsResponse struct {
	Models []Model `json:"models"`
}

// CreateModelRequest is sent to POST /create.
type CreateModelRequest struct {
	Name      string `json:"name"`
	Path      string `json:"path,omitempty"`
	Modelfile string `json:"modelfile,omitempty"`
	Stream    *bool  `json:"stream,omitempty"`
}

// ShowModelInformationRequest is sent to POST /show.
type ShowModelInformationRequest struct {
	Name string `json:"name"`
}

// ShowModelInformationResponse is returned by POST /show.
type ShowModelInformationResponse struct {
	License    string       `json:"license"`
	Modelfile  string       `json:"modelfile"`
	Parameters string       `json:"parameters"`
	Template   string       `json:"template"`
	Details    ModelDetails `json:"details,omitempty"`
}

// CopyModelRequest is sent to POST /copy.
type CopyModelRequest struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// DeleteModelRequest is sent to DELETE /delete.
type DeleteModelRequest struct {
	Model string `json:"model"`
}

// PullModelRequest is sent to POST /pull.
type PullModelRequest struct {
	Name     string `json:"name"`
	Insecure bool   `json:"insecure,omitempty"`
	Stream   *bool  `json:"stream,omitempty"`
}

// PushModelRequest is sent to POST /push.
type PushModelRequest struct {
	Name     string `json:"name"`
	Insecure bool   `json:"insecure,omitempty"`
	Stream   *bool  `json:"stream,omitempty"`
}

// StatusResponse is the generic {status} reply of the model management
// endpoints (create, copy, delete, push).
type StatusResponse struct {
	Status string `json:"status"`
}

// PullModelResponse is returned by POST /pull with streaming disabled.
type PullModelResponse struct {
	Status string `json:"status"`
	Digest string `json:"digest,omitempty"`
	Total  int64  `json:"total,omitempty"`
}

// GenerateEmbeddingsRequest is sent to POST /embeddings.
type GenerateEmbeddingsRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Options map[string]any `json:"options,omitempty"`
}

// GenerateEmbeddingsResponse is returned by POST /embeddings.
type GenerateEmbeddingsResponse struct {
	Embedding []float64 `json:"embedding"`
}

// VersionResponse is returned by GET /version.
type VersionResponse struct {
	Version string `json:"version"`
}

// Bool returns a pointer to b, for the optional stream flags.
func Bool(b bool) *bool { return &b }
