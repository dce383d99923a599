package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"bookkeeping-go/internal/apperr"
)

// SchemaDecoder validates model output against a JSON schema before decoding
// it. Anything that does not validate is rejected.
type SchemaDecoder struct {
	schema *gojsonschema.Schema
}

func NewSchemaDecoder(schema []byte) (*SchemaDecoder, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schema))
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return &SchemaDecoder{schema: s}, nil
}

// Decode cleans raw, validates it and unmarshals it into v. Failures are
// ExternalServiceError so callers fall back.
func (d *SchemaDecoder) Decode(raw string, v any) error {
	clean := CleanJSON(raw)
	res, err := d.schema.Validate(gojsonschema.NewStringLoader(clean))
	if err != nil {
		return apperr.Wrap(apperr.ExternalServiceError, fmt.Errorf("model reply is not JSON: %w", err))
	}
	if !res.Valid() {
		details := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			details = append(details, e.String())
		}
		return apperr.Wrap(apperr.ExternalServiceError, fmt.Errorf("model reply violates schema: %s", strings.Join(details, "; ")))
	}
	if err := json.Unmarshal([]byte(clean), v); err != nil {
		return apperr.Wrap(apperr.ExternalServiceError, fmt.Errorf("decode model reply: %w", err))
	}
	return nil
}

// CleanJSON strips Markdown code fences models sometimes wrap JSON in.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
