package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DisplayNamePrefix is prepended to room titles when a workspace is created.
const DisplayNamePrefix = "SyncAI-"

// EnsureWorkspace makes sure the workspace for a discussion room exists and
// returns the slug the service knows it by. An existing workspace is found
// by the room slug or by its display name, so repeated calls and restarts
// do not create duplicates.
func (c *client) EnsureWorkspace(ctx context.Context, roomCode, displayName string) (string, error) {
	roomCode = strings.TrimSpace(roomCode)
	if roomCode == "" {
		return "", errors.New("remote: room code is required")
	}
	if displayName == "" {
		displayName = roomCode
	}
	return c.ensureNamed(ctx, c.cfg.WorkspacePrefix+strings.ToLower(roomCode), DisplayNamePrefix+displayName)
}

// ensureSlug is the chat path: a workspace named after slug is created if
// none exists. It returns the slug to post to.
func (c *client) ensureSlug(ctx context.Context, slug string) (string, error) {
	return c.ensureNamed(ctx, slug, slug)
}

// ensureNamed runs get-or-create at most once per wanted slug at a time and
// remembers which upstream slug it resolved to. The shared call is detached
// from the first caller's cancellation and bounded by UpstreamTimeout.
func (c *client) ensureNamed(ctx context.Context, want, name string) (string, error) {
	if slug, ok := c.known.Load(want); ok {
		return slug.(string), nil
	}

	v, err, shared := c.ensure.Do(want, func() (interface{}, error) {
		if slug, ok := c.known.Load(want); ok {
			return slug.(string), nil
		}

		octx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.UpstreamTimeout)
		defer cancel()

		slug, err := c.getOrCreate(octx, want, name)
		if err != nil {
			return "", err
		}
		c.known.Store(want, slug)
		c.known.Store(slug, slug)
		return slug, nil
	})
	if shared {
		c.logger.Debug("workspace ensure coalesced", zap.String("workspace", want))
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// getOrCreate returns the upstream slug of the workspace whose slug is want
// or whose name is name, creating it under name when neither exists.
func (c *client) getOrCreate(ctx context.Context, want, name string) (string, error) {
	workspaces, err := c.ListWorkspaces(ctx)
	if err != nil {
		return "", fmt.Errorf("remote: list workspaces: %w", err)
	}
	if ws, ok := findWorkspace(workspaces, want, name); ok {
		c.logger.Debug("workspace exists",
			zap.String("workspace", ws.Slug),
			zap.Int("id", ws.ID),
		)
		return ws.Slug, nil
	}

	bodyBytes, err := json.Marshal(providerNewWorkspaceRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("remote: marshal workspace request: %w", err)
	}

	resp, err := c.doWithRetry(ctx, "workspace_new", bodyBytes, c.post(c.endpoint("workspace", "new")))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.statusError(resp)
	}

	var pResp providerNewWorkspaceResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&pResp); err != nil {
		return "", &Error{Kind: KindUpstream, Message: "decode workspace response", Err: err}
	}
	if pResp.Workspace == nil || pResp.Workspace.Slug == "" {
		msg := pResp.Message
		if msg == "" {
			msg = "workspace was not created"
		}
		return "", &Error{Kind: KindUpstream, Message: msg}
	}

	c.logger.Info("workspace created",
		zap.String("wanted", want),
		zap.String("workspace", pResp.Workspace.Slug),
		zap.Int("id", pResp.Workspace.ID),
		zap.String("name", name),
	)
	return pResp.Workspace.Slug, nil
}

// findWorkspace prefers a slug match over a name match.
func findWorkspace(workspaces []Workspace, slug, name string) (Workspace, bool) {
	for _, ws := range workspaces {
		if ws.Slug == slug {
			return ws, true
		}
	}
	for _, ws := range workspaces {
		if ws.Name == name {
			return ws, true
		}
	}
	return Workspace{}, false
}

// ListWorkspaces returns every workspace visible to the API key.
func (c *client) ListWorkspaces(ctx context.Context) ([]Workspace, error) {
	resp, err := c.doWithRetry(ctx, "workspaces", nil, c.get(c.endpoint("workspaces")))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp)
	}

	var pResp providerWorkspacesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&pResp); err != nil {
		return nil, &Error{Kind: KindUpstream, Message: "decode workspaces", Err: err}
	}

	out := make([]Workspace, 0, len(pResp.Workspaces))
	for _, ws := range pResp.Workspaces {
		out = append(out, Workspace{ID: ws.ID, Name: ws.Name, Slug: ws.Slug})
	}
	return out, nil
}

// TestConnection reports whether the workspace list endpoint answers 200.
func (c *client) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.ListWorkspaces(ctx); err != nil {
		c.logger.Warn("remote connection test failed", zap.Error(err))
		return false
	}
	return true
}
