package tabular

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readCSV decodes UTF-8 CSV, dropping a leading byte order mark. Invalid
// UTF-8 is an error. Rows may be ragged; newTable reconciles them with the
// header.
func readCSV(r io.Reader) ([][]string, error) {
	decoded := transform.NewReader(r, transform.Chain(encoding.UTF8Validator, unicode.BOMOverride(transform.Nop)))
	reader := csv.NewReader(decoded)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false
	return reader.ReadAll()
}
