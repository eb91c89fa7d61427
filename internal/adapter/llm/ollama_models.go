package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shreeramdrao/Cysinfo-AI/internal/domain"
	"github.com/shreeramdrao/Cysinfo-AI/internal/infra/tracer"
)

// statusSuccess is reported when an endpoint answers 2xx with an empty body.
const statusSuccess = "success"

// ProgressHandler receives each progress record of a pull, push or create.
type ProgressHandler func(domain.ProgressResponse)

// ListLocalModels lists the models available on the server.
func (c *Client) ListLocalModels(ctx context.Context) (*domain.ListLocalModelsResponse, error) {
	var resp domain.ListLocalModelsResponse
	if err := c.doJSONRequest(ctx, http.MethodGet, "/tags", nil, &resp); err != nil {
		return nil, modelsError("Client.ListLocalModels", err)
	}
	return &resp, nil
}

// ShowModelInformation returns the modelfile, template and parameters of a model.
func (c *Client) ShowModelInformation(ctx context.Context, req domain.ShowModelInformationRequest) (*domain.ShowModelInformationResponse, error) {
	var resp domain.ShowModelInformationResponse
	if err := c.doJSONRequest(ctx, http.MethodPost, "/show", req, &resp); err != nil {
		return nil, modelsError("Client.ShowModelInformation", err)
	}
	return &resp, nil
}

// CopyModel duplicates a model under a new name.
func (c *Client) CopyModel(ctx context.Context, req domain.CopyModelRequest) (*domain.StatusResponse, error) {
	return c.statusRequest(ctx, "Client.CopyModel", http.MethodPost, "/copy", req)
}

// DeleteModel removes a model.
func (c *Client) DeleteModel(ctx context.Context, req domain.DeleteModelRequest) (*domain.StatusResponse, error) {
	return c.statusRequest(ctx, "Client.DeleteModel", http.MethodDelete, "/delete", req)
}

// CreateModel builds a model from a Modelfile and waits for the final status.
func (c *Client) CreateModel(ctx context.Context, req domain.CreateModelRequest) (*domain.StatusResponse, error) {
	req.Stream = domain.Bool(false)
	return c.statusRequest(ctx, "Client.CreateModel", http.MethodPost, "/create", req)
}

// PushModel uploads a model to a registry and waits for the final status.
func (c *Client) PushModel(ctx context.Context, req domain.PushModelRequest) (*domain.StatusResponse, error) {
	req.Stream = domain.Bool(false)
	return c.statusRequest(ctx, "Client.PushModel", http.MethodPost, "/push", req)
}

// PullModel downloads a model from a registry and waits for the final status.
func (c *Client) PullModel(ctx context.Context, req domain.PullModelRequest) (*domain.PullModelResponse, error) {
	req.Stream = domain.Bool(false)
	var resp domain.PullModelResponse
	if err := c.doJSONRequest(ctx, http.MethodPost, "/pull", req, &resp); err != nil {
		return nil, modelsError("Client.PullModel", err)
	}
	if resp.Status == "" {
		resp.Status = statusSuccess
	}
	return &resp, nil
}

// PullModelStream downloads a model, reporting each progress record.
func (c *Client) PullModelStream(ctx context.Context, req domain.PullModelRequest, onProgress ProgressHandler) error {
	req.Stream = domain.Bool(true)
	return c.streamProgress(ctx, "Client.PullModelStream", "/pull", req, onProgress)
}

// PushModelStream uploads a model, reporting each progress record.
func (c *Client) PushModelStream(ctx context.Context, req domain.PushModelRequest, onProgress ProgressHandler) error {
	req.Stream = domain.Bool(true)
	return c.streamProgress(ctx, "Client.PushModelStream", "/push", req, onProgress)
}

// CreateModelStream builds a model, reporting each progress record.
func (c *Client) CreateModelStream(ctx context.Context, req domain.CreateModelRequest, onProgress ProgressHandler) error {
	req.Stream = domain.Bool(true)
	return c.streamProgress(ctx, "Client.CreateModelStream", "/create", req, onProgress)
}

// GenerateEmbeddings returns the embedding of one prompt.
func (c *Client) GenerateEmbeddings(ctx context.Context, req domain.GenerateEmbeddingsRequest) (*domain.GenerateEmbeddingsResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	var resp domain.GenerateEmbeddingsResponse
	if err := c.doJSONRequest(ctx, http.MethodPost, "/embeddings", req, &resp); err != nil {
		return nil, domain.WrapOp("Client.GenerateEmbeddings", err)
	}
	return &resp, nil
}

func (c *Client) statusRequest(ctx context.Context, op, method, path string, body any) (*domain.StatusResponse, error) {
	var resp domain.StatusResponse
	if err := c.doJSONRequest(ctx, method, path, body, &resp); err != nil {
		return nil, modelsError(op, err)
	}
	if resp.Status == "" {
		resp.Status = statusSuccess
	}
	return &resp, nil
}

// streamProgress decodes an NDJSON progress stream. A record carrying an
// error field ends the call with ErrProviderError.
func (c *Client) streamProgress(ctx context.Context, op, path string, body any, onProgress ProgressHandler) error {
	ctx, span := tracer.StartSpan(ctx, "ollama.progress")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("ollama.path", path))

	httpResp, err := c.send(ctx, http.MethodPost, path, body, "application/x-ndjson")
	if err != nil {
		err = modelsError(op, err)
		tracer.RecordError(span, err)
		return err
	}
	defer httpResp.Body.Close()

	var failure string
	dec := NewDecoder[domain.ProgressResponse](c.logger, SinkFunc[domain.ProgressResponse](func(p domain.ProgressResponse) {
		if p.Error != "" && failure == "" {
			failure = p.Error
		}
		if onProgress != nil {
			onProgress(p)
		}
	}))
	dec.SetMaxLineBytes(c.maxLineBytes)

	if err := pumpBody(ctx, httpResp.Body, dec, c.readBufferSize); err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			err = domain.NewSubSystemError("models", op, domain.ErrTimeout, err.Error())
		case ctx.Err() != nil:
			err = domain.NewSubSystemError("models", op, domain.ErrCancelled, err.Error())
		default:
			err = fmt.Errorf("%s: %w: %w", op, domain.ErrTransport, err)
		}
		tracer.RecordError(span, err)
		return err
	}
	if failure != "" {
		err := domain.NewSubSystemError("models", op, domain.ErrProviderError, failure)
		tracer.RecordError(span, err)
		return err
	}

	c.logger.Debug("progress stream finished", "path", path, "records", len(dec.Records()))
	tracer.SetOK(span)
	return nil
}

// modelsError tags failures with the models subsystem so a 404 maps to
// CodeModelNotFound. The *StatusError stays reachable through errors.As.
func modelsError(op string, err error) error {
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", domain.NewSubSystemError("models", op, domain.ErrNotFound, se.Message), se)
	}
	return domain.WrapOp(op, err)
}
