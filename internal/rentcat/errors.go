package rentcat

import (
	"errors"
	"fmt"
	"strings"

	"rentcat/internal/catalog"
)

var (
	// ErrStorageCorrupt means the stored document exists but cannot be decoded.
	ErrStorageCorrupt = errors.New("catalog storage is corrupt")

	// ErrStorageWriteFailed means the document could not be replaced. The
	// previous document is still in place.
	ErrStorageWriteFailed = errors.New("catalog storage write failed")

	ErrBackupNotFound = errors.New("backup not found")

	// ErrGeneratorStageFailed is matched by every stage failure.
	ErrGeneratorStageFailed = errors.New("generator stage failed")
)

// UserMessage turns an error into text fit for the catalog editor. Stage
// output and file paths stay in the log.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var verr *catalog.ValidationError
	if errors.As(err, &verr) {
		var b strings.Builder
		b.WriteString("The catalog was not saved because it is invalid:")
		for _, path := range verr.Errors.Paths() {
			for _, msg := range verr.Errors.Map()[path] {
				if path == "" {
					fmt.Fprintf(&b, "\n  - %s", msg)
					continue
				}
				fmt.Fprintf(&b, "\n  - %s: %s", path, msg)
			}
		}
		return b.String()
	}

	var nf *catalog.NotFoundError
	switch {
	case errors.As(err, &nf):
		kind := nf.Kind.Error()
		return fmt.Sprintf("%s%s: %q.", strings.ToUpper(kind[:1]), kind[1:], nf.Key)
	case errors.Is(err, ErrGeneratorStageFailed):
		return "The catalog was saved, but regenerating the site failed. Check the log for details."
	case errors.Is(err, ErrStorageCorrupt):
		return "The stored catalog could not be read. Restore a backup or fix the file by hand."
	case errors.Is(err, ErrStorageWriteFailed):
		return "The catalog could not be saved. The previous version is unchanged."
	case errors.Is(err, catalog.ErrAmbiguousTool):
		return "The tool id exists in more than one subcategory; say which one is meant."
	case errors.Is(err, catalog.ErrInvalidPricing):
		return "The pricing must be a list of label and price pairs."
	}
	return err.Error()
}
