package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/missing-persons-intake/internal/common"
)

// DecodeFields turns a raw extraction document into ExtractedFields: sanitize,
// validate against the schema, unmarshal. Errors wrap common.ErrExtraction.
func DecodeFields(raw []byte, logger *slog.Logger) (ExtractedFields, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cleaned, _, err := NormalizeAndSanitizeJSON(raw, logger)
	if err != nil {
		return ExtractedFields{}, fmt.Errorf("%w: %v", common.ErrExtraction, err)
	}
	if err := ValidateJSONAgainstSchema(BuildExtractionJSONSchema(), cleaned); err != nil {
		logger.Error("llm.extract.schema_validation_failed", "error", err, "content", string(cleaned))
		return ExtractedFields{}, fmt.Errorf("%w: %v", common.ErrExtraction, err)
	}
	var out ExtractedFields
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return ExtractedFields{}, fmt.Errorf("%w: unmarshal fields: %v", common.ErrExtraction, err)
	}
	return out, nil
}
