// Package gatekeeper decides DOWNLOAD vs SKIP for a discovered docket
// entry using only its metadata. Document bytes never reach this package.
package gatekeeper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sells-group/retrieval-cli/internal/model"
	"github.com/sells-group/retrieval-cli/pkg/llm"
)

const systemPrompt = `You are a financial document classifier specialising in Chapter 11 bankruptcy cases.
Your job is to decide whether a docket entry likely contains substantive capital
structure or debt financing information.

Documents that QUALIFY (score 0.70-1.0, verdict DOWNLOAD):
- First Day Declarations or Declarations in Support of First Day Motions
- DIP (Debtor-in-Possession) financing motions
- Cash collateral motions with capital structure narrative
- Motions explicitly referencing prepetition debt, credit agreements, or loan facilities
- Documents titled "Declaration of [Name] in Support of..." related to financing

Documents that DO NOT QUALIFY (score 0.0-0.50, verdict SKIP):
- Fee applications, retention applications, professional fee statements
- Service affidavits, proof of service, certificates of service
- Scheduling orders, case management orders, procedural motions
- Schedules of assets and liabilities without narrative debt description
- Sale motions without explicit capital structure context
- Any document from a company with no plausible Chapter 11 filing

CRITICAL RULES:
1. Base your decision ONLY on the docket title and attachment descriptions provided.
2. You have NOT read the PDF. Do not invent or assume PDF content.
3. Respond with valid JSON only. No preamble. No explanation outside the JSON.
4. Your reasoning must be one sentence and must NOT reference any PDF content.`

const userPromptTemplate = `Evaluate this docket entry:

Filing date: %s
Docket title: %s
Attachment descriptions: %s

Respond with this exact JSON structure:
{
  "score": <float 0.0 to 1.0>,
  "verdict": "<DOWNLOAD or SKIP>",
  "reasoning": "<one sentence, max 200 characters, based only on title and descriptions>"
}`

const maxReasoningChars = 200

// Gatekeeper scores candidates against a fixed relevance threshold.
// Construct once per run and reuse across deals.
type Gatekeeper struct {
	client    llm.Client
	model     string
	threshold float64
	maxTokens int64
	timeout   time.Duration

	nowFunc func() time.Time
}

// Options configures a Gatekeeper.
type Options struct {
	Model          string
	ScoreThreshold float64
	MaxTokens      int64
	Timeout        time.Duration
}

// New creates a Gatekeeper backed by client.
func New(client llm.Client, opts Options) *Gatekeeper {
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = 0.70
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 150
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Gatekeeper{
		client:    client,
		model:     opts.Model,
		threshold: opts.ScoreThreshold,
		maxTokens: opts.MaxTokens,
		timeout:   opts.Timeout,
		nowFunc:   time.Now,
	}
}

// Evaluate scores one candidate. It never returns an error: any transport
// or parse failure produces a SKIP result with Error set and score 0.
func (g *Gatekeeper) Evaluate(ctx context.Context, candidate model.CandidateDocument) model.GatekeeperResult {
	attachments := strings.Join(candidate.TruncatedAttachments(), "; ")
	if attachments == "" {
		attachments = "None provided"
	}

	temp := 0.0
	req := llm.MessageRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		System:      systemPrompt,
		Temperature: &temp,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, candidate.FilingDate, candidate.DocketTitle, attachments)},
		},
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := g.nowFunc()
	resp, err := g.client.CreateMessage(callCtx, req)
	latency := g.nowFunc().Sub(start).Milliseconds()

	if err != nil {
		zap.L().Warn("gatekeeper call failed",
			zap.String("deal_id", candidate.DealID),
			zap.Error(err),
		)
		return g.failClosed("scoring call failed", err.Error(), 0, latency)
	}

	resp.Usage.LogCost(g.model, "gatekeeper")

	tokens := int(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	return g.parseResponse(candidate.DealID, resp.Text(), tokens, latency)
}

// Threshold returns the configured score threshold.
func (g *Gatekeeper) Threshold() float64 { return g.threshold }

type rawVerdict struct {
	Score     float64 `json:"score"`
	Verdict   string  `json:"verdict"`
	Reasoning string  `json:"reasoning"`
}

// parseResponse decodes the model's JSON, tolerating markdown fences and
// surrounding prose. The model's own verdict string is discarded; the
// verdict is always derived from score vs threshold.
func (g *Gatekeeper) parseResponse(dealID, raw string, tokens int, latencyMS int64) model.GatekeeperResult {
	cleaned := stripFences(raw)

	var parsed rawVerdict
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		sub, ok := firstJSONObject(cleaned)
		if !ok {
			return g.failClosed("no JSON found in response", truncate(raw, 120), tokens, latencyMS)
		}
		if err := json.Unmarshal([]byte(sub), &parsed); err != nil {
			return g.failClosed("JSON parse failed", truncate(raw, 120), tokens, latencyMS)
		}
	}

	score := parsed.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	reasoning := parsed.Reasoning
	if reasoning == "" {
		reasoning = "No reasoning provided"
	}
	reasoning = truncate(reasoning, maxReasoningChars)

	verdict := model.VerdictSkip
	if score >= g.threshold {
		verdict = model.VerdictDownload
	}

	zap.L().Debug("gatekeeper decision",
		zap.String("deal_id", dealID),
		zap.Float64("score", score),
		zap.String("verdict", string(verdict)),
	)

	return model.GatekeeperResult{
		Verdict:    verdict,
		Score:      score,
		Reasoning:  reasoning,
		TokenCount: tokens,
		ModelUsed:  g.model,
		LatencyMS:  latencyMS,
	}
}

func (g *Gatekeeper) failClosed(reason, detail string, tokens int, latencyMS int64) model.GatekeeperResult {
	zap.L().Warn("gatekeeper fail-closed skip",
		zap.String("reason", reason),
		zap.String("detail", detail),
	)
	return model.GatekeeperResult{
		Verdict:    model.VerdictSkip,
		Score:      0.0,
		Reasoning:  "Conservative SKIP: " + reason,
		TokenCount: tokens,
		ModelUsed:  g.model,
		LatencyMS:  latencyMS,
		Error:      reason + ": " + detail,
	}
}

// stripFences removes markdown code-fence lines the model sometimes wraps
// its JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	var kept []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// firstJSONObject returns the first balanced {...} substring of s.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// truncate cuts s to at most n runes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
