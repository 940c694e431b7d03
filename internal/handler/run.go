package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/young1lin/supplementbot/internal/converter"
	"github.com/young1lin/supplementbot/internal/models"
	"github.com/young1lin/supplementbot/pkg/logger"
)

var (
	// ErrRunFailed is returned when the remote run ends in a non-completed terminal state
	ErrRunFailed = errors.New("assistant run failed")

	// ErrRunTimeout is returned when the run does not complete before the deadline
	ErrRunTimeout = errors.New("assistant run timed out")
)

// RemoteClient is the part of the Assistants API a chat turn needs
type RemoteClient interface {
	CreateThread(ctx context.Context) (string, error)
	AddUserMessage(ctx context.Context, threadID, text string) error
	StartRun(ctx context.Context, threadID, assistantID string) (models.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (models.Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, results []models.ToolCallResult) error
	LatestMessage(ctx context.Context, threadID string) (models.Message, error)
	FileName(ctx context.Context, fileID string) (string, error)
}

// ToolDispatcher answers a batch of tool calls
type ToolDispatcher interface {
	Dispatch(ctx context.Context, calls []models.ToolCallRequest) []models.ToolCallResult
}

// turnState is the client-side view of a chat turn
type turnState string

const (
	stateSubmitted      turnState = "submitted"
	statePolling        turnState = "polling"
	stateRequiresAction turnState = "requires_action"
	stateCompleted      turnState = "completed"
	stateFailed         turnState = "failed"
	stateTimedOut       turnState = "timed_out"
)

// ChatDriver drives remote runs to completion
type ChatDriver struct {
	client       RemoteClient
	tools        ToolDispatcher
	assistantID  string
	pollInterval time.Duration
	timeout      time.Duration
}

// NewChatDriver creates a new chat driver
func NewChatDriver(client RemoteClient, tools ToolDispatcher, assistantID string, pollInterval, timeout time.Duration) *ChatDriver {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ChatDriver{
		client:       client,
		tools:        tools,
		assistantID:  assistantID,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// StartConversation creates a new remote thread
func (d *ChatDriver) StartConversation(ctx context.Context) (string, error) {
	return d.client.CreateThread(ctx)
}

// PostMessage adds the user's text to the thread, runs the assistant and
// returns the reply with citations resolved
func (d *ChatDriver) PostMessage(ctx context.Context, threadID, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	log := logger.FromContext(ctx).With(zap.String("thread_id", threadID))

	if err := d.client.AddUserMessage(ctx, threadID, text); err != nil {
		return "", d.wrapDeadline(ctx, err)
	}

	run, err := d.client.StartRun(ctx, threadID, d.assistantID)
	if err != nil {
		return "", d.wrapDeadline(ctx, err)
	}
	log = log.With(zap.String("run_id", run.ID))
	log.Debug("run state", zap.String("state", string(stateSubmitted)))

	if err := d.awaitRun(ctx, threadID, run.ID, log); err != nil {
		return "", err
	}

	msg, err := d.client.LatestMessage(ctx, threadID)
	if err != nil {
		return "", d.wrapDeadline(ctx, err)
	}

	response, err := converter.ConvertMessage(ctx, msg, d.client)
	if err != nil {
		return "", d.wrapDeadline(ctx, err)
	}

	log.Info("chat turn completed",
		zap.String("message_id", msg.ID),
		zap.Int("annotation_count", len(msg.Annotations)),
	)
	return response, nil
}

// awaitRun polls the run until it completes, answering every tool call
// request exactly once along the way
func (d *ChatDriver) awaitRun(ctx context.Context, threadID, runID string, log *zap.Logger) error {
	answered := make(map[string]bool)
	state := stateSubmitted

	transition := func(next turnState, fields ...zap.Field) {
		if next != state {
			log.Debug("run state", append(fields, zap.String("state", string(next)))...)
			state = next
		}
	}

	for {
		run, err := d.client.GetRun(ctx, threadID, runID)
		if err != nil {
			return d.wrapDeadline(ctx, err)
		}

		switch run.Status {
		case models.RunStatusCompleted:
			transition(stateCompleted)
			return nil

		case models.RunStatusRequiresAction:
			transition(stateRequiresAction)
			if err := d.answerToolCalls(ctx, threadID, runID, run.ToolCalls, answered, log); err != nil {
				return d.wrapDeadline(ctx, err)
			}

		case models.RunStatusFailed, models.RunStatusCancelled, models.RunStatusExpired, models.RunStatusIncomplete:
			transition(stateFailed, zap.String("status", string(run.Status)), zap.String("last_error", run.LastError))
			if run.LastError != "" {
				return fmt.Errorf("%w: %s: %s", ErrRunFailed, run.Status, run.LastError)
			}
			return fmt.Errorf("%w: %s", ErrRunFailed, run.Status)

		default:
			transition(statePolling, zap.String("status", string(run.Status)))
		}

		select {
		case <-ctx.Done():
			transition(stateTimedOut)
			return d.wrapDeadline(ctx, ctx.Err())
		case <-time.After(d.pollInterval):
		}
	}
}

func (d *ChatDriver) answerToolCalls(ctx context.Context, threadID, runID string, calls []models.ToolCallRequest, answered map[string]bool, log *zap.Logger) error {
	var pending []models.ToolCallRequest
	for _, call := range calls {
		if !answered[call.CallID] {
			pending = append(pending, call)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	log.Info("dispatching tool calls", zap.Int("count", len(pending)))

	results := d.tools.Dispatch(ctx, pending)
	if err := d.client.SubmitToolOutputs(ctx, threadID, runID, results); err != nil {
		return err
	}

	for _, r := range results {
		answered[r.CallID] = true
	}
	return nil
}

// wrapDeadline marks errors caused by the turn deadline as ErrRunTimeout
func (d *ChatDriver) wrapDeadline(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrRunTimeout, d.timeout, err)
	}
	return err
}
