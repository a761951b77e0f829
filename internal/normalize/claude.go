package normalize

import (
	"encoding/json"
	"strings"

	"github.com/janekbaraniewski/ccost/internal/core"
	"github.com/janekbaraniewski/ccost/internal/locate"
	"github.com/janekbaraniewski/ccost/internal/logreader"
)

type claudeEntry struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	Timestamp string         `json:"timestamp"`
	RequestID string         `json:"requestId"`
	Request   *claudeRequest `json:"request,omitempty"`
	CostUSD   *float64       `json:"costUSD,omitempty"`
	CWD       string         `json:"cwd,omitempty"`
	Message   *claudeMessage `json:"message,omitempty"`
}

type claudeRequest struct {
	ID string `json:"id"`
}

type claudeMessage struct {
	ID    string       `json:"id"`
	Model string       `json:"model"`
	Usage *claudeUsage `json:"usage,omitempty"`
}

type claudeUsage struct {
	InputTokens              *int64 `json:"input_tokens"`
	OutputTokens             *int64 `json:"output_tokens"`
	CacheCreationInputTokens int64  `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int64  `json:"cache_read_input_tokens"`
}

var claudeNonUsageTypes = map[string]bool{
	"user":                  true,
	"summary":               true,
	"system":                true,
	"file-history-snapshot": true,
	"queue-operation":       true,
	"progress":              true,
}

type claudeNormalizer struct {
	ref locate.FileRef
}

func newClaudeNormalizer(ref locate.FileRef) *claudeNormalizer {
	return &claudeNormalizer{ref: ref}
}

func (n *claudeNormalizer) Normalize(rec logreader.Record) (core.UsageEvent, Result) {
	var entry claudeEntry
	if err := json.Unmarshal(rec.Raw, &entry); err != nil {
		return core.UsageEvent{}, ResultUnrecognized
	}

	switch entry.Type {
	case "", "assistant":
	default:
		if claudeNonUsageTypes[entry.Type] {
			return core.UsageEvent{}, ResultNonUsage
		}
		return core.UsageEvent{}, ResultUnrecognized
	}

	if entry.Message == nil || entry.Message.Usage == nil {
		return core.UsageEvent{}, ResultNonUsage
	}
	usage := entry.Message.Usage
	if usage.InputTokens == nil || usage.OutputTokens == nil {
		return core.UsageEvent{}, ResultInvalid
	}
	ts, ok := parseTimestamp(entry.Timestamp)
	if !ok {
		return core.UsageEvent{}, ResultInvalid
	}

	model := strings.TrimSpace(entry.Message.Model)
	if model == "" {
		model = UnknownModel
	}

	return core.UsageEvent{
		Timestamp: ts,
		Source:    core.SourceClaude,
		Model:     model,
		Tokens: core.Tokens{
			Input:      *usage.InputTokens,
			Output:     *usage.OutputTokens,
			CacheWrite: usage.CacheCreationInputTokens,
			CacheRead:  usage.CacheReadInputTokens,
		}.Clamp(),
		ReportedCostUSD: entry.CostUSD,
		DedupKey:        claudeDedupKey(entry),
		Project:         n.ref.Project,
		Instance:        workspaceLabel(entry.CWD),
	}, ResultEvent
}

// claudeDedupKey pairs the API message id with the request id. Streaming
// writes one line per content block with the same pair, so the pair names the
// billable exchange. Without both ids the record cannot be matched and gets no
// key.
func claudeDedupKey(entry claudeEntry) string {
	if entry.Message == nil {
		return ""
	}
	messageID := strings.TrimSpace(entry.Message.ID)
	requestID := strings.TrimSpace(entry.RequestID)
	if requestID == "" && entry.Request != nil {
		requestID = strings.TrimSpace(entry.Request.ID)
	}
	if messageID == "" || requestID == "" {
		return ""
	}
	return messageID + ":" + requestID
}
