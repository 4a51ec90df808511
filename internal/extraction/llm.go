package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pacer/internal/llmcache"
	"github.com/fyrsmithlabs/pacer/internal/logging"
)

// Completer sends one system+user exchange to a language model.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	// Model names the backend model; it is part of the reply cache key.
	Model() string
}

// extractionPrompt is the fixed system prompt for the model tier.
const extractionPrompt = `You extract data for a half-marathon finish time predictor.
The user text may be in English or Polish.

Return ONLY a JSON object with exactly these keys:
{"gender": "male" | "female" | null, "age": integer | null, "time_5km_seconds": integer | null}

Rules:
- gender: "male" for M, man, mezczyzna, facet, chlopak; "female" for K, woman, kobieta, dziewczyna.
- age: whole years between 15 and 90, otherwise null.
- time_5km_seconds: the 5 km time converted to seconds, between 540 and 3600, otherwise null.
  "24:30" -> 1470, "0:22:15" -> 1335, "25 min" -> 1500, "23 min 45 s" -> 1425, "24,5 minuty" -> 1470.
- Use null for anything not stated. Do not guess.

Examples:
"Jestem kobieta, 41 lat, 5 km w 27:10" -> {"gender": "female", "age": 41, "time_5km_seconds": 1630}
"male, 35 years old, 5k PB 22:10" -> {"gender": "male", "age": 35, "time_5km_seconds": 1330}
"I run 5k in about 25 minutes" -> {"gender": null, "age": null, "time_5km_seconds": 1500}`

// ModelExtractor asks a language model for the three fields. Replies are
// memoized per (text, model) through the reply cache.
type ModelExtractor struct {
	completer Completer
	cache     *llmcache.Cache
	logger    *logging.Logger
}

// NewModelExtractor creates a ModelExtractor. A nil completer makes every
// extraction return an empty Result; a nil cache disables memoization.
func NewModelExtractor(completer Completer, cache *llmcache.Cache, logger *logging.Logger) *ModelExtractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ModelExtractor{
		completer: completer,
		cache:     cache,
		logger:    logger.Named("llm"),
	}
}

// Available reports whether a backend is configured.
func (m *ModelExtractor) Available() bool {
	return m != nil && m.completer != nil
}

// Extract never fails: any backend or parse error yields an empty Result and
// a warning.
func (m *ModelExtractor) Extract(ctx context.Context, text string) Result {
	if !m.Available() {
		m.logger.Debug(ctx, "model extraction skipped, no backend configured")
		return Result{}
	}

	reply, err := m.reply(ctx, text)
	if err != nil {
		m.logger.Warn(ctx, "model extraction failed",
			zap.String("model", m.completer.Model()),
			zap.Error(err),
		)
		return Result{}
	}
	m.logger.Trace(ctx, "model reply", zap.String("reply", reply))

	res, err := parseReply(reply)
	if err != nil {
		m.logger.Warn(ctx, "model reply unparseable",
			zap.String("model", m.completer.Model()),
			zap.Error(err),
		)
		return Result{}
	}
	return res
}

func (m *ModelExtractor) reply(ctx context.Context, text string) (string, error) {
	load := func(ctx context.Context) (string, error) {
		return m.completer.Complete(ctx, extractionPrompt, scrubSecrets(text))
	}
	if m.cache == nil {
		return load(ctx)
	}
	return m.cache.GetOrLoad(ctx, llmcache.Key{Text: text, Model: m.completer.Model()}, load)
}

var errNoJSONObject = errors.New("no JSON object in reply")

// parseReply decodes the first JSON object in reply, ignoring any prose or
// code fence around it, and coerces each field.
func parseReply(reply string) (Result, error) {
	start := strings.IndexByte(reply, '{')
	if start < 0 {
		return Result{}, errNoJSONObject
	}

	dec := json.NewDecoder(strings.NewReader(reply[start:]))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return Result{}, fmt.Errorf("decode reply: %w", err)
	}

	var res Result
	if s, ok := raw[FieldGender].(string); ok {
		if g, ok := ParseGender(s); ok {
			res.Gender = g
		}
	}
	if age, ok := coerceInt(raw[FieldAge]); ok {
		res, _ = res.withAge(age)
	}
	if secs, ok := coerceInt(raw[FieldTime5K]); ok {
		res, _ = res.withTime(secs)
	}
	return res, nil
}

// coerceInt accepts integral JSON numbers and numeric strings.
func coerceInt(v interface{}) (int, bool) {
	var f float64
	switch t := v.(type) {
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

var secretPatterns = []struct {
	regex       *regexp.Regexp
	replacement string
}{
	{
		regexp.MustCompile(`(OPENAI_API_KEY|ANTHROPIC_API_KEY|AWS_SECRET_ACCESS_KEY|ARTIFACT_SECRET_KEY)\s*=\s*([^\s]+)`),
		"$1=[REDACTED:ENV_SECRET]",
	},
	{
		regexp.MustCompile(`sk-ant-[a-zA-Z0-9-]{20,}`),
		"[REDACTED:ANTHROPIC_KEY]",
	},
	{
		regexp.MustCompile(`sk-[a-zA-Z0-9_-]{20,}`),
		"[REDACTED:OPENAI_KEY]",
	},
	{
		regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*["']?\s*([^"'\s]{8,})["']?`),
		"$1=[REDACTED:API_KEY]",
	},
	{
		regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.=]{20,}`),
		"[REDACTED:BEARER_TOKEN]",
	},
	{
		regexp.MustCompile(`(?i)(password|passwd|haslo)\s*[:=]\s*["']?\s*([^"'\s]{4,})["']?`),
		"$1=[REDACTED:PASSWORD]",
	},
}

// scrubSecrets removes credentials a user may have pasted before the text
// leaves the process.
func scrubSecrets(content string) string {
	for _, p := range secretPatterns {
		content = p.regex.ReplaceAllString(content, p.replacement)
	}
	return content
}
