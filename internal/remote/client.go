package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/young1lin/supplementbot/internal/config"
	"github.com/young1lin/supplementbot/internal/models"
	"github.com/young1lin/supplementbot/pkg/logger"
)

// Client talks to the hosted Assistants API
type Client struct {
	api *openai.Client
}

// NewClient creates an Assistants API client
func NewClient(cfg *config.OpenAIConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout: time.Duration(timeout) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	return &Client{api: openai.NewClientWithConfig(clientCfg)}
}

// UploadKnowledge uploads a document and wraps it in a vector store so
// file_search can retrieve from it. It returns the vector store ID.
func (c *Client) UploadKnowledge(ctx context.Context, path string) (string, error) {
	file, err := c.api.CreateFile(ctx, openai.FileRequest{
		FileName: filepath.Base(path),
		FilePath: path,
		Purpose:  string(openai.PurposeAssistants),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", path, err)
	}

	logger.Info("knowledge document uploaded",
		zap.String("file_id", file.ID),
		zap.String("filename", file.FileName),
	)

	store, err := c.api.CreateVectorStore(ctx, openai.VectorStoreRequest{
		Name:    filepath.Base(path),
		FileIDs: []string{file.ID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create vector store: %w", err)
	}

	return store.ID, nil
}

// CreateAssistant registers an assistant and returns its ID
func (c *Client) CreateAssistant(ctx context.Context, def models.AssistantDefinition) (string, error) {
	tools := []openai.AssistantTool{
		{Type: openai.AssistantToolTypeFileSearch},
	}
	for _, fn := range def.Functions {
		tools = append(tools, openai.AssistantTool{
			Type: openai.AssistantToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  fn.Parameters,
			},
		})
	}

	req := openai.AssistantRequest{
		Model:        def.Model,
		Instructions: &def.Instructions,
		Tools:        tools,
	}
	if def.Name != "" {
		req.Name = &def.Name
	}
	if def.VectorStoreID != "" {
		req.ToolResources = &openai.AssistantToolResource{
			FileSearch: &openai.AssistantToolFileSearch{
				VectorStoreIDs: []string{def.VectorStoreID},
			},
		}
	}

	asst, err := c.api.CreateAssistant(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create assistant: %w", err)
	}
	return asst.ID, nil
}

// CreateThread starts a new conversation thread
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return thread.ID, nil
}

// AddUserMessage appends a user-authored message to a thread
func (c *Client) AddUserMessage(ctx context.Context, threadID, text string) error {
	_, err := c.api.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    openai.ChatMessageRoleUser,
		Content: text,
	})
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// StartRun runs the assistant against a thread
func (c *Client) StartRun(ctx context.Context, threadID, assistantID string) (models.Run, error) {
	run, err := c.api.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID: assistantID,
	})
	if err != nil {
		return models.Run{}, fmt.Errorf("failed to create run: %w", err)
	}
	return convertRun(run), nil
}

// GetRun polls the current state of a run
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (models.Run, error) {
	run, err := c.api.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return models.Run{}, fmt.Errorf("failed to retrieve run: %w", err)
	}
	return convertRun(run), nil
}

// SubmitToolOutputs answers a batch of pending tool calls in one request
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, results []models.ToolCallResult) error {
	outputs := make([]openai.ToolOutput, len(results))
	for i, r := range results {
		outputs[i] = openai.ToolOutput{
			ToolCallID: r.CallID,
			Output:     r.Output,
		}
	}

	_, err := c.api.SubmitToolOutputs(ctx, threadID, runID, openai.SubmitToolOutputsRequest{
		ToolOutputs: outputs,
	})
	if err != nil {
		return fmt.Errorf("failed to submit tool outputs: %w", err)
	}
	return nil
}

// ErrNoMessages is returned when a thread has no messages to read back
var ErrNoMessages = errors.New("thread has no messages")

// LatestMessage returns the newest message in a thread
func (c *Client) LatestMessage(ctx context.Context, threadID string) (models.Message, error) {
	limit := 1
	order := "desc"

	list, err := c.api.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to list messages: %w", err)
	}
	if len(list.Messages) == 0 {
		return models.Message{}, ErrNoMessages
	}

	return convertMessage(list.Messages[0])
}

// FileName returns the stored filename of an uploaded file
func (c *Client) FileName(ctx context.Context, fileID string) (string, error) {
	file, err := c.api.GetFile(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve file %s: %w", fileID, err)
	}
	return file.FileName, nil
}

func convertRun(run openai.Run) models.Run {
	out := models.Run{
		ID:       run.ID,
		ThreadID: run.ThreadID,
		Status:   models.RunStatus(run.Status),
	}
	if run.LastError != nil {
		out.LastError = fmt.Sprintf("%s: %s", run.LastError.Code, run.LastError.Message)
	}
	if run.RequiredAction != nil && run.RequiredAction.SubmitToolOutputs != nil {
		for _, tc := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, models.ToolCallRequest{
				CallID:       tc.ID,
				FunctionName: tc.Function.Name,
				Arguments:    tc.Function.Arguments,
			})
		}
	}
	return out
}

// convertMessage takes the first text content part of a message
func convertMessage(msg openai.Message) (models.Message, error) {
	out := models.Message{ID: msg.ID}

	for _, part := range msg.Content {
		if part.Text == nil {
			continue
		}
		out.Text = part.Text.Value

		annotations, err := decodeAnnotations(part.Text.Annotations)
		if err != nil {
			return out, err
		}
		out.Annotations = annotations
		break
	}

	return out, nil
}

// decodeAnnotations re-decodes the untyped annotation list
func decodeAnnotations(raw []any) ([]models.Annotation, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}

	var annotations []models.Annotation
	if err := json.Unmarshal(data, &annotations); err != nil {
		return nil, fmt.Errorf("failed to decode annotations: %w", err)
	}
	return annotations, nil
}
