package remote

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/young1lin/supplementbot/internal/config"
	"github.com/young1lin/supplementbot/internal/models"
)

// newTestClient points the client at a fake Assistants API
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&config.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/v1",
		Timeout: 5,
	})
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, body)
}

func TestCreateThread(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/threads" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Unexpected Authorization header: %s", got)
		}
		writeJSON(w, `{"id":"thread_abc","object":"thread","created_at":1}`)
	})

	id, err := c.CreateThread(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if id != "thread_abc" {
		t.Errorf("Expected 'thread_abc', got '%s'", id)
	}
}

func TestGetRun_RequiresAction(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/thread_1/runs/run_1" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		writeJSON(w, `{
			"id": "run_1", "object": "thread.run", "thread_id": "thread_1",
			"status": "requires_action",
			"required_action": {
				"type": "submit_tool_outputs",
				"submit_tool_outputs": {"tool_calls": [
					{"id": "call_1", "type": "function", "function": {"name": "fetch_supplement_info", "arguments": "{\"query\":\"omega-3 supplement\"}"}}
				]}
			}
		}`)
	})

	run, err := c.GetRun(context.Background(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if run.Status != models.RunStatusRequiresAction {
		t.Errorf("Expected requires_action, got %s", run.Status)
	}
	if len(run.ToolCalls) != 1 {
		t.Fatalf("Expected 1 tool call, got %d", len(run.ToolCalls))
	}
	want := models.ToolCallRequest{CallID: "call_1", FunctionName: "fetch_supplement_info", Arguments: `{"query":"omega-3 supplement"}`}
	if run.ToolCalls[0] != want {
		t.Errorf("Expected %+v, got %+v", want, run.ToolCalls[0])
	}
}

func TestGetRun_Failed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"id":"run_1","thread_id":"thread_1","status":"failed","last_error":{"code":"rate_limit_exceeded","message":"slow down"}}`)
	})

	run, err := c.GetRun(context.Background(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !run.Status.IsTerminal() {
		t.Errorf("Expected terminal status, got %s", run.Status)
	}
	if run.LastError != "rate_limit_exceeded: slow down" {
		t.Errorf("Unexpected last error: %q", run.LastError)
	}
}

func TestSubmitToolOutputs(t *testing.T) {
	var body struct {
		ToolOutputs []struct {
			ToolCallID string `json:"tool_call_id"`
			Output     string `json:"output"`
		} `json:"tool_outputs"`
	}

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/thread_1/runs/run_1/submit_tool_outputs" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode body: %v", err)
		}
		writeJSON(w, `{"id":"run_1","status":"queued"}`)
	})

	err := c.SubmitToolOutputs(context.Background(), "thread_1", "run_1", []models.ToolCallResult{
		{CallID: "call_1", Output: `"No supplements found for your query."`},
		{CallID: "call_2", Output: `null`},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(body.ToolOutputs) != 2 {
		t.Fatalf("Expected 2 outputs in one request, got %d", len(body.ToolOutputs))
	}
	if body.ToolOutputs[0].ToolCallID != "call_1" || body.ToolOutputs[1].Output != "null" {
		t.Errorf("Unexpected outputs: %+v", body.ToolOutputs)
	}
}

func TestLatestMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/thread_1/messages" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("limit") != "1" || q.Get("order") != "desc" {
			t.Errorf("Expected newest-first single message, got %s", r.URL.RawQuery)
		}
		writeJSON(w, `{"object":"list","data":[{
			"id":"msg_1","object":"thread.message","role":"assistant","thread_id":"thread_1",
			"content":[{"type":"text","text":{
				"value":"Omega-3 helps【4:0†source】.",
				"annotations":[{"type":"file_citation","text":"【4:0†source】","start_index":13,"end_index":25,
					"file_citation":{"file_id":"file_kb","quote":"EPA and DHA"}}]
			}}]
		}],"first_id":"msg_1","last_id":"msg_1","has_more":false}`)
	})

	msg, err := c.LatestMessage(context.Background(), "thread_1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(msg.Text, "Omega-3 helps") {
		t.Errorf("Unexpected text: %q", msg.Text)
	}
	if len(msg.Annotations) != 1 {
		t.Fatalf("Expected 1 annotation, got %d", len(msg.Annotations))
	}
	a := msg.Annotations[0]
	if !a.HasFileCitation() || a.FileID != "file_kb" || a.Quote != "EPA and DHA" {
		t.Errorf("Unexpected annotation: %+v", a)
	}
	if a.StartIndex != 13 || a.EndIndex != 25 {
		t.Errorf("Unexpected span: %d-%d", a.StartIndex, a.EndIndex)
	}
}

func TestLatestMessage_Empty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, `{"object":"list","data":[]}`)
	})

	if _, err := c.LatestMessage(context.Background(), "thread_1"); err != ErrNoMessages {
		t.Errorf("Expected ErrNoMessages, got %v", err)
	}
}

func TestFileName(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/files/file_kb" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		writeJSON(w, `{"id":"file_kb","object":"file","filename":"KB.docx","purpose":"assistants"}`)
	})

	name, err := c.FileName(context.Background(), "file_kb")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if name != "KB.docx" {
		t.Errorf("Expected 'KB.docx', got '%s'", name)
	}
}

func TestRemoteError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"message":"No thread found","type":"invalid_request_error"}}`)
	})

	if err := c.AddUserMessage(context.Background(), "thread_missing", "hi"); err == nil {
		t.Error("Expected error for 404 response")
	}
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{"v1.41.2", false},
		{"v1.24.0", false},
		{"v1.17.9", true},
		{"", false},
		{"(devel)", false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := checkVersion(tt.version)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkVersion(%q) error = %v, wantErr %v", tt.version, err, tt.wantErr)
			}
		})
	}
}
