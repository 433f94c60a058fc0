package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/deskmate/deskmate/internal/models"
)

const assistantsBetaHeader = "assistants=v2"

// AssistantSpec describes a hosted assistant to create or modify
type AssistantSpec struct {
	Name          string
	Instructions  string
	Model         string
	Temperature   float64
	Tools         []models.ToolSchema
	VectorStoreID string
}

type assistantRequest struct {
	Name         string          `json:"name"`
	Instructions string          `json:"instructions"`
	Model        string          `json:"model"`
	Temperature  float64         `json:"temperature"`
	Tools        []assistantTool `json:"tools,omitempty"`
	ToolRes      *toolResources  `json:"tool_resources,omitempty"`
}

type assistantTool struct {
	Type     string        `json:"type"`
	Function *chatFunction `json:"function,omitempty"`
}

type toolResources struct {
	FileSearch struct {
		VectorStoreIDs []string `json:"vector_store_ids"`
	} `json:"file_search"`
}

type assistantResponse struct {
	ID string `json:"id"`
}

func (spec AssistantSpec) toWire() assistantRequest {
	req := assistantRequest{
		Name:         spec.Name,
		Instructions: spec.Instructions,
		Model:        spec.Model,
		Temperature:  spec.Temperature,
	}
	for _, schema := range spec.Tools {
		req.Tools = append(req.Tools, assistantTool{
			Type: "function",
			Function: &chatFunction{
				Name:        schema.Name,
				Description: schema.Description,
				Parameters:  schema.Parameters,
			},
		})
	}
	if spec.VectorStoreID != "" {
		req.Tools = append(req.Tools, assistantTool{Type: "file_search"})
		res := &toolResources{}
		res.FileSearch.VectorStoreIDs = []string{spec.VectorStoreID}
		req.ToolRes = res
	}
	return req
}

func (c *Client) betaHeaders() map[string]string {
	return map[string]string{"OpenAI-Beta": assistantsBetaHeader}
}

// CreateAssistant provisions a hosted assistant and returns its id
func (c *Client) CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error) {
	var resp assistantResponse
	if err := c.doJSON(ctx, http.MethodPost, "/assistants", c.betaHeaders(), spec.toWire(), &resp); err != nil {
		return "", fmt.Errorf("failed to create assistant: %w", err)
	}
	c.logger.Info("assistant created", "assistant_id", resp.ID, "name", spec.Name)
	return resp.ID, nil
}

// ModifyAssistant replaces the remote assistant's configuration
func (c *Client) ModifyAssistant(ctx context.Context, assistantID string, spec AssistantSpec) error {
	if err := c.doJSON(ctx, http.MethodPost, "/assistants/"+assistantID, c.betaHeaders(), spec.toWire(), nil); err != nil {
		return fmt.Errorf("failed to modify assistant %s: %w", assistantID, err)
	}
	return nil
}

// DeleteAssistant removes the remote assistant. A 404 surfaces as
// ErrNotFound so callers can decide whether absence is an error.
func (c *Client) DeleteAssistant(ctx context.Context, assistantID string) error {
	if err := c.doJSON(ctx, http.MethodDelete, "/assistants/"+assistantID, c.betaHeaders(), nil, nil); err != nil {
		return fmt.Errorf("failed to delete assistant %s: %w", assistantID, err)
	}
	return nil
}

type fileResponse struct {
	ID string `json:"id"`
}

// UploadFile uploads a document for assistant retrieval and returns the
// file id
func (c *Client) UploadFile(ctx context.Context, filename string, content []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build upload form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/files", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", classifyStatus(httpResp.StatusCode, respBody)
	}

	var resp fileResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	c.logger.Info("file uploaded", "file_id", resp.ID, "filename", filename)
	return resp.ID, nil
}

type vectorStoreRequest struct {
	Name    string   `json:"name"`
	FileIDs []string `json:"file_ids"`
}

type vectorStoreResponse struct {
	ID string `json:"id"`
}

// CreateVectorStore indexes the given files into a retrieval store and
// returns the store id
func (c *Client) CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error) {
	req := vectorStoreRequest{Name: name, FileIDs: fileIDs}
	var resp vectorStoreResponse
	if err := c.doJSON(ctx, http.MethodPost, "/vector_stores", c.betaHeaders(), req, &resp); err != nil {
		return "", fmt.Errorf("failed to create vector store: %w", err)
	}
	c.logger.Info("vector store created", "vector_store_id", resp.ID, "name", name)
	return resp.ID, nil
}
