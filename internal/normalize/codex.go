package normalize

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/janekbaraniewski/ccost/internal/core"
	"github.com/janekbaraniewski/ccost/internal/locate"
	"github.com/janekbaraniewski/ccost/internal/logreader"
)

type codexSessionEvent struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

type codexSessionMeta struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
	CWD       string `json:"cwd"`
}

type codexTurnContext struct {
	Model string `json:"model"`
	CWD   string `json:"cwd"`
}

type codexEventPayload struct {
	Type string          `json:"type"`
	Info *codexTokenInfo `json:"info"`
}

type codexTokenInfo struct {
	TotalTokenUsage *codexTokenUsage `json:"total_token_usage"`
	LastTokenUsage  *codexTokenUsage `json:"last_token_usage"`
}

type codexTokenUsage struct {
	InputTokens           int64 `json:"input_tokens"`
	CachedInputTokens     int64 `json:"cached_input_tokens"`
	OutputTokens          int64 `json:"output_tokens"`
	ReasoningOutputTokens int64 `json:"reasoning_output_tokens"`
	TotalTokens           int64 `json:"total_tokens"`
}

var codexNonUsageTypes = map[string]bool{
	"response_item": true,
	"compacted":     true,
}

type codexNormalizer struct {
	ref         locate.FileRef
	sessionID   string
	file        string
	model       string
	workspace   string
	previous    codexTokenUsage
	hasPrevious bool
}

func newCodexNormalizer(ref locate.FileRef) *codexNormalizer {
	file := ref.Project
	if ref.Path != "" {
		file = strings.TrimSuffix(filepath.Base(ref.Path), filepath.Ext(ref.Path))
	}
	return &codexNormalizer{ref: ref, sessionID: ref.Project, file: file}
}

func (n *codexNormalizer) Normalize(rec logreader.Record) (core.UsageEvent, Result) {
	var ev codexSessionEvent
	if err := json.Unmarshal(rec.Raw, &ev); err != nil {
		return core.UsageEvent{}, ResultUnrecognized
	}

	switch ev.Type {
	case "session_meta":
		var meta codexSessionMeta
		if json.Unmarshal(ev.Payload, &meta) == nil {
			if sid := firstNonEmpty(meta.SessionID, meta.ID); sid != "" {
				n.sessionID = sid
			}
			if m := strings.TrimSpace(meta.Model); m != "" {
				n.model = m
			}
			if ws := workspaceLabel(meta.CWD); ws != "" {
				n.workspace = ws
			}
		}
		return core.UsageEvent{}, ResultNonUsage
	case "turn_context":
		var tc codexTurnContext
		if json.Unmarshal(ev.Payload, &tc) == nil {
			if m := strings.TrimSpace(tc.Model); m != "" {
				n.model = m
			}
			if ws := workspaceLabel(tc.CWD); ws != "" {
				n.workspace = ws
			}
		}
		return core.UsageEvent{}, ResultNonUsage
	case "event_msg":
		return n.tokenCount(ev, rec.Line)
	default:
		if codexNonUsageTypes[ev.Type] {
			return core.UsageEvent{}, ResultNonUsage
		}
		return core.UsageEvent{}, ResultUnrecognized
	}
}

func (n *codexNormalizer) tokenCount(ev codexSessionEvent, line int) (core.UsageEvent, Result) {
	var payload codexEventPayload
	if json.Unmarshal(ev.Payload, &payload) != nil || payload.Type != "token_count" || payload.Info == nil {
		return core.UsageEvent{}, ResultNonUsage
	}

	info := payload.Info
	var usage codexTokenUsage
	switch {
	case info.LastTokenUsage != nil:
		usage = *info.LastTokenUsage
	case info.TotalTokenUsage != nil:
		usage = *info.TotalTokenUsage
		if n.hasPrevious {
			usage = codexUsageDelta(*info.TotalTokenUsage, n.previous)
			if !validCodexDelta(usage) {
				usage = *info.TotalTokenUsage
			}
		}
	default:
		return core.UsageEvent{}, ResultNonUsage
	}

	// One session id can span several rollout files.
	key := fmt.Sprintf("%s:%s:line:%d", n.sessionID, n.file, line)
	if info.TotalTokenUsage != nil {
		n.previous = *info.TotalTokenUsage
		n.hasPrevious = true
		key = fmt.Sprintf("%s:%d", n.sessionID, info.TotalTokenUsage.TotalTokens)
	}

	if codexUsageTotal(usage) <= 0 {
		return core.UsageEvent{}, ResultNonUsage
	}
	ts, ok := parseTimestamp(ev.Timestamp)
	if !ok {
		return core.UsageEvent{}, ResultInvalid
	}

	model := n.model
	if model == "" {
		model = UnknownModel
	}

	// OpenAI reports cached tokens as a subset of input tokens.
	return core.UsageEvent{
		Timestamp: ts,
		Source:    core.SourceCodex,
		Model:     model,
		Tokens: core.Tokens{
			Input:     usage.InputTokens - usage.CachedInputTokens,
			Output:    usage.OutputTokens,
			CacheRead: usage.CachedInputTokens,
		}.Clamp(),
		DedupKey: key,
		Project:  n.ref.Project,
		Instance: n.workspace,
	}, ResultEvent
}

func codexUsageTotal(u codexTokenUsage) int64 {
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.InputTokens + u.OutputTokens
}

func codexUsageDelta(current, previous codexTokenUsage) codexTokenUsage {
	return codexTokenUsage{
		InputTokens:           current.InputTokens - previous.InputTokens,
		CachedInputTokens:     current.CachedInputTokens - previous.CachedInputTokens,
		OutputTokens:          current.OutputTokens - previous.OutputTokens,
		ReasoningOutputTokens: current.ReasoningOutputTokens - previous.ReasoningOutputTokens,
		TotalTokens:           current.TotalTokens - previous.TotalTokens,
	}
}

// validCodexDelta rejects deltas that went backwards, which happens when a
// session resumes with reset counters.
func validCodexDelta(delta codexTokenUsage) bool {
	return delta.InputTokens >= 0 &&
		delta.CachedInputTokens >= 0 &&
		delta.OutputTokens >= 0 &&
		delta.ReasoningOutputTokens >= 0 &&
		delta.TotalTokens >= 0
}
