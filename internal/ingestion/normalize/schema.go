package normalize

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/yungbote/winegraph/internal/domain"
)

//go:embed raw_record.schema.json
var rawRecordSchema []byte

func compileSchema() (*gojsonschema.Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(rawRecordSchema))
	if err != nil {
		return nil, fmt.Errorf("normalize: compile raw record schema: %w", err)
	}
	return s, nil
}

// checkShape validates required fields and their primitive types. It runs on the
// renamed record so aliases are already resolved.
func checkShape(schema *gojsonschema.Schema, rec map[string]any, recordID string) error {
	res, err := schema.Validate(gojsonschema.NewGoLoader(rec))
	if err != nil {
		return &domain.ValidationError{RecordID: recordID, Reason: "record is not a JSON object", Err: err}
	}
	if res.Valid() {
		return nil
	}
	first := res.Errors()[0]
	field := first.Field()
	if field == "(root)" {
		// required-property failures are reported on the root
		if p, ok := first.Details()["property"].(string); ok {
			field = p
		} else {
			field = ""
		}
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return &domain.ValidationError{
		RecordID: recordID,
		Field:    field,
		Reason:   strings.Join(msgs, "; "),
	}
}
