package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openeduhub/metaextract/internal/llm"
	"github.com/openeduhub/metaextract/internal/schema"
	"github.com/openeduhub/metaextract/internal/vocab"
)

// Gateway is the slice of the LLM gateway the normalizer needs.
type Gateway interface {
	Invoke(ctx context.Context, messages []llm.Message) (string, error)
}

// Normalizer applies local rules first and falls back to gateway-backed
// normalization when they are insufficient.
type Normalizer struct {
	gw     Gateway
	logger *slog.Logger
}

// New creates a normalizer. gw may be nil, in which case only local rules
// apply.
func New(gw Gateway, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{gw: gw, logger: logger}
}

// Local runs the synchronous rules only.
func (n *Normalizer) Local(f *schema.Field, raw any) Result {
	return Local(f, raw)
}

// Normalize returns the canonical form of raw for field f. It never fails:
// remote errors fall back to the local result when that differs from the
// input, else the original value comes back unchanged. For controlled
// vocabulary fields the return is always a tracked label (or labels), or
// nil when the value was rejected.
func (n *Normalizer) Normalize(ctx context.Context, f *schema.Field, raw any) any {
	if local := Local(f, raw); local.OK {
		return local.Value
	}

	if alreadyNormalized(f, raw) || n.gw == nil {
		return raw
	}

	response, err := n.gw.Invoke(ctx, []llm.Message{
		{Role: "user", Content: buildPrompt(f, raw)},
	})
	if err != nil {
		n.logger.Warn("Remote normalization failed, keeping value", "field", f.ID, "error", err)
		return raw
	}

	value := parseResponse(response)
	if value == nil {
		return raw
	}

	// Remote output runs through the local rules once more so vocabulary
	// soundness and formatting hold regardless of what the model said.
	if local := Local(f, value); local.OK {
		return local.Value
	}
	return value
}

// alreadyNormalized reports the skip conditions under which no remote call
// is worth making: the value is trivially in canonical form already.
func alreadyNormalized(f *schema.Field, raw any) bool {
	hasVocab := len(f.Concepts()) > 0

	switch f.System.Datatype {
	case schema.TypeString:
		if hasVocab {
			return false
		}
		if _, ok := raw.(string); ok {
			return true
		}
		return isStringSlice(raw)
	case schema.TypeArray:
		return !hasVocab && isStringSlice(raw)
	case schema.TypeBoolean:
		_, ok := raw.(bool)
		return ok
	case schema.TypeNumber, schema.TypeInteger:
		switch raw.(type) {
		case float64, int:
			return true
		}
		return false
	case schema.TypeDate:
		s, ok := raw.(string)
		return ok && isoDate.MatchString(s)
	case schema.TypeObject:
		// Structured values are decomposed by shape expansion, not rewritten
		// wholesale.
		switch raw.(type) {
		case map[string]any, []any:
			return true
		}
		return false
	}
	return false
}

func isStringSlice(raw any) bool {
	if _, ok := raw.([]string); ok {
		return true
	}
	elements, ok := raw.([]any)
	if !ok {
		return false
	}
	for _, el := range elements {
		if _, ok := el.(string); !ok {
			return false
		}
	}
	return true
}

// buildPrompt asks for the bare normalized value, encoding vocabulary
// constraints inline when present.
func buildPrompt(f *schema.Field, raw any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Normalize the following value for the metadata field %q (type: %s).\n",
		f.Prompt.Label, f.System.Datatype)

	switch f.System.Datatype {
	case schema.TypeDate:
		b.WriteString("Dates must be formatted as YYYY-MM-DD.\n")
	case schema.TypeNumber, schema.TypeInteger:
		b.WriteString("Return the value as a plain number, converting number words if needed.\n")
	case schema.TypeBoolean:
		b.WriteString("Return exactly true or false.\n")
	}

	if concepts := f.Concepts(); len(concepts) > 0 {
		labels := make([]string, len(concepts))
		for i, c := range concepts {
			labels[i] = c.Label
		}
		if f.Controlled() {
			fmt.Fprintf(&b, "The value MUST be exactly one of: %s\n", strings.Join(labels, ", "))
		} else {
			fmt.Fprintf(&b, "Prefer one of these values when it fits: %s\n", strings.Join(labels, ", "))
		}
	}

	fmt.Fprintf(&b, "\nValue: %s\n\n", formatValue(raw))
	b.WriteString("Return ONLY the normalized value. No markdown, no explanation.")
	return b.String()
}

// parseResponse turns the model's reply into a value: the whole (unquoted)
// reply, or a decoded scalar/array when the reply is valid JSON.
func parseResponse(response string) any {
	s := llm.StripFences(response)
	if s == "" {
		return nil
	}

	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err == nil {
		return decoded
	}
	return strings.Trim(s, `"`)
}

// ValidAgainstVocabulary reports whether a normalized value satisfies the
// field's controlled vocabulary. Non-vocabulary fields are always valid.
func ValidAgainstVocabulary(f *schema.Field, value any) bool {
	if !f.Controlled() {
		return true
	}
	switch t := value.(type) {
	case nil:
		return false
	case string:
		_, ok := vocab.Match(t, f.Concepts(), true)
		return ok
	case []any:
		for _, el := range t {
			s, ok := el.(string)
			if !ok {
				return false
			}
			if _, ok := vocab.Match(s, f.Concepts(), true); !ok {
				return false
			}
		}
		return len(t) > 0
	default:
		return false
	}
}
