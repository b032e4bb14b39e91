package selection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattsolo1/grove-mlconsole/pkg/models"
)

// ErrEmptyKey matches every *EmptyKeyError.
var ErrEmptyKey = errors.New("tag key cannot be empty")

// EmptyKeyError reports a row that has a value but no key.
type EmptyKeyError struct {
	Index int
	Value string
}

func (e *EmptyKeyError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Index, ErrEmptyKey)
}

func (e *EmptyKeyError) Unwrap() error {
	return ErrEmptyKey
}

// Commit prepares rows for persistence. Rows whose key and value are both blank are
// dropped; any other row with a blank key fails the whole commit. The index in the
// returned error refers to the input slice.
func Commit(rows []models.Tag) ([]models.Tag, error) {
	cleaned := make([]models.Tag, 0, len(rows))
	for i, row := range rows {
		key := strings.TrimSpace(row.Key)
		value := strings.TrimSpace(row.Value)
		if key == "" && value == "" {
			continue
		}
		if key == "" {
			return nil, &EmptyKeyError{Index: i, Value: row.Value}
		}
		cleaned = append(cleaned, row)
	}
	return cleaned, nil
}
