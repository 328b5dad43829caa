package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/phasewise"
	"github.com/aretw0/phasewise/graphs"
)

const (
	stage1 = "stage_1_deciding_issue"
	stage2 = "stage_2_information_gathering"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eng, err := phasewise.New(graphs.Stages)
	require.NoError(t, err)
	return NewServer(eng)
}

func call(t *testing.T, s *Server, method string, params any) string {
	t.Helper()
	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	resp := s.MCPServer().HandleMessage(context.Background(), msg)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(out)
}

func TestServer_ListTools(t *testing.T) {
	s := newTestServer(t)
	out := call(t, s, "tools/list", map[string]any{})

	for _, name := range []string{"start_session", "collect_structured_data", "therapy_session_transition", "get_session_status", "get_phase_graph"} {
		assert.Contains(t, out, fmt.Sprintf("%q", name))
	}
}

func TestServer_GraphResource(t *testing.T) {
	s := newTestServer(t)
	out := call(t, s, "resources/read", map[string]any{"uri": GraphURI})
	assert.Contains(t, out, stage1)
	assert.Contains(t, out, "application/json")
}

func TestServer_ToolCall(t *testing.T) {
	s := newTestServer(t)

	out := call(t, s, "tools/call", map[string]any{
		"name":      "start_session",
		"arguments": map[string]any{"session_id": "m1"},
	})
	assert.Contains(t, out, stage1)

	out = call(t, s, "tools/call", map[string]any{
		"name":      "get_session_status",
		"arguments": map[string]any{"session_id": "missing"},
	})
	assert.Contains(t, out, `"isError":true`)

	out = call(t, s, "tools/call", map[string]any{"name": "get_phase_graph"})
	assert.Contains(t, out, "suds_above_zero_timeout")
}

func TestServer_CollectThenTransition(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	_, err := s.handleStart(ctx, req, map[string]any{"session_id": "m2"})
	require.NoError(t, err)

	res, err := s.handleCollect(ctx, req, map[string]any{
		"session_id": "m2",
		"phase_id":   stage1,
		"fields":     `{"selected_issue": "stage fright", "issue_intensity": 8}`,
	})
	require.NoError(t, err)
	assert.False(t, res.Transitioned, "collect never moves the session")
	assert.True(t, res.ReadyToTransition)
	assert.Equal(t, stage2, res.NextPhase)

	_, err = s.handleCollect(ctx, req, map[string]any{
		"session_id": "m2",
		"phase_id":   stage2,
		"fields":     map[string]any{},
	})
	assert.ErrorContains(t, err, "collect failed")

	_, err = s.handleTransition(ctx, req, map[string]any{"session_id": "m2", "target": "stage_8_completion"})
	assert.ErrorContains(t, err, "illegal transition")

	res, err = s.handleTransition(ctx, req, map[string]any{"session_id": "m2"})
	require.NoError(t, err)
	assert.True(t, res.Transitioned)
	assert.Equal(t, stage2, res.PhaseID)

	snap, err := s.handleStatus(ctx, req, map[string]any{"session_id": "m2"})
	require.NoError(t, err)
	assert.Equal(t, stage2, snap.PhaseID)
	assert.Equal(t, int64(8), snap.Fields["issue_intensity"])
}

func TestServer_CollectRejectsBadFields(t *testing.T) {
	s := newTestServer(t)
	_, err := s.handleCollect(context.Background(), mcp.CallToolRequest{}, map[string]any{
		"session_id": "m3",
		"fields":     "not json",
	})
	assert.ErrorContains(t, err, "fields must be a JSON object")
}

func TestServer_CollectStartsSessionLazily(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	res, err := s.handleCollect(ctx, req, map[string]any{
		"session_id": "fresh",
		"fields":     map[string]any{"selected_issue": "heights"},
	})
	require.NoError(t, err)
	assert.Equal(t, stage1, res.PhaseID)
	assert.False(t, res.ReadyToTransition)

	res, err = s.handleTransition(ctx, req, map[string]any{"session_id": "fresh-too"})
	require.NoError(t, err)
	assert.False(t, res.Transitioned)
	assert.Equal(t, stage1, res.PhaseID)
	require.NotNil(t, res.Blocked)

	snap, err := s.handleStatus(ctx, req, map[string]any{"session_id": "fresh"})
	require.NoError(t, err)
	assert.Equal(t, "heights", snap.Fields["selected_issue"])
}
