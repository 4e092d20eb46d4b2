package pipeline

import (
	"fmt"
	"strings"

	"github.com/openeduhub/metaextract/internal/schema"
)

// buildExtractionPrompt asks the model for one field's value as a bare JSON
// object.
func buildExtractionPrompt(f *schema.Field, text string) string {
	var b strings.Builder

	b.WriteString("You are a metadata librarian for an educational content repository. ")
	b.WriteString("Extract exactly one metadata field from the source text below.\n\n")

	fmt.Fprintf(&b, "Field: %s\n", f.Prompt.Label)
	if f.Prompt.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", f.Prompt.Description)
	}
	fmt.Fprintf(&b, "Type: %s\n", datatypeHint(f))

	if len(f.Prompt.Examples) > 0 {
		fmt.Fprintf(&b, "Examples of valid values: %s\n", strings.Join(f.Prompt.Examples, "; "))
	}
	writeVocabulary(&b, f, false)

	fmt.Fprintf(&b, "\nSource text:\n%s\n\n", text)

	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. Extract only what is clearly present in the text; do not invent information.\n")
	b.WriteString("2. If the text contains no value for this field, use null.\n")
	b.WriteString("3. Respond with ONLY a JSON object of the form {\"value\": ...}. No markdown, no explanation.\n")
	return b.String()
}

// buildStrictVocabularyPrompt is the one retry after a controlled-vocabulary
// rejection: same task, permitted values reiterated.
func buildStrictVocabularyPrompt(f *schema.Field, text string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Classify the source text below for the metadata field %q.\n\n", f.Prompt.Label)
	b.WriteString("Your previous answer was not in the controlled vocabulary. ")
	writeVocabulary(&b, f, true)

	fmt.Fprintf(&b, "\nSource text:\n%s\n\n", text)
	b.WriteString("Respond with ONLY a JSON object of the form {\"value\": ...}, ")
	b.WriteString("where the value is copied verbatim from the permitted list, or null if none applies.")
	return b.String()
}

func writeVocabulary(b *strings.Builder, f *schema.Field, strict bool) {
	concepts := f.Concepts()
	if len(concepts) == 0 {
		return
	}
	labels := make([]string, len(concepts))
	for i, c := range concepts {
		labels[i] = c.Label
	}
	switch {
	case strict, f.Controlled():
		fmt.Fprintf(b, "The value MUST be exactly one of the following, verbatim: %s\n", strings.Join(labels, ", "))
	default:
		fmt.Fprintf(b, "Prefer one of these values when it fits: %s\n", strings.Join(labels, ", "))
	}
}

func datatypeHint(f *schema.Field) string {
	hint := f.System.Datatype
	switch f.System.Datatype {
	case schema.TypeDate:
		hint += " (format: YYYY-MM-DD)"
	case schema.TypeBoolean:
		hint += " (true or false)"
	}
	if f.System.Multiple {
		hint += ", as a JSON array"
	}
	if f.Shaped() {
		var props []string
		for _, v := range f.Variants() {
			props = append(props, fmt.Sprintf("{%s}", strings.Join(v.Properties, ", ")))
		}
		hint += ", as a JSON object with properties " + strings.Join(props, " or ")
	}
	return hint
}

// buildDetectionPrompt asks the model to classify the text into one of the
// available content-type schemas.
func buildDetectionPrompt(text string, types []schema.ContentType) string {
	var b strings.Builder

	b.WriteString("Classify the source text below into one of the following content types:\n\n")
	for _, t := range types {
		fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
	}

	fmt.Fprintf(&b, "\nSource text:\n%s\n\n", text)

	b.WriteString("Respond with ONLY a JSON object:\n")
	b.WriteString(`{"schema": "<content type name>", "confidence": <0..1>, "reason": "<one sentence>"}`)
	return b.String()
}
