package remote

import "strings"

// Request shape we send to the workspace chat endpoints.
type providerChatRequest struct {
	Message string `json:"message"`
	Mode    string `json:"mode"`
}

type providerSource struct {
	Title string `json:"title"`
	Text  string `json:"text,omitempty"`
}

// Non-streaming chat response. Deployments differ in which text field they
// fill, so all three are read.
type providerChatResponse struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	TextResponse string           `json:"textResponse"`
	Message      *string          `json:"message,omitempty"`
	Response     *string          `json:"response,omitempty"`
	Sources      []providerSource `json:"sources,omitempty"`
	Close        bool             `json:"close"`
	Error        interface{}      `json:"error"`
}

// text picks the answer field in priority order.
func (r *providerChatResponse) text() (string, bool) {
	switch {
	case r.TextResponse != "":
		return r.TextResponse, true
	case r.Message != nil:
		return *r.Message, true
	case r.Response != nil:
		return *r.Response, true
	}
	return "", false
}

// errorMessage returns the upstream error when the error field is set.
// The field is null, false, or a string depending on the server version.
func (r *providerChatResponse) errorMessage() string {
	return errorField(r.Error)
}

func errorField(v interface{}) string {
	switch e := v.(type) {
	case string:
		return strings.TrimSpace(e)
	case bool:
		if e {
			return "unknown error"
		}
	case map[string]interface{}:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
		return "unknown error"
	}
	return ""
}

type providerWorkspace struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type providerWorkspacesResponse struct {
	Workspaces []providerWorkspace `json:"workspaces"`
}

type providerNewWorkspaceRequest struct {
	Name string `json:"name"`
}

type providerNewWorkspaceResponse struct {
	Workspace *providerWorkspace `json:"workspace"`
	Message   string             `json:"message"`
}

type providerErrorResponse struct {
	Message string      `json:"message"`
	Error   interface{} `json:"error"`
}

// Chunk shape for streaming responses (each SSE "data:" event).
type providerStreamChunk struct {
	UUID         string      `json:"uuid"`
	Type         string      `json:"type"`
	TextResponse string      `json:"textResponse"`
	Close        bool        `json:"close"`
	Error        interface{} `json:"error"`
}
