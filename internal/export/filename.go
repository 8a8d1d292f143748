package export

import (
	"strings"

	"pd-docgen/internal/model"
)

const fileSuffix = "_documentation.md"

// SanitizeFilename maps every rune outside [A-Za-z0-9] to '_' and lowercases the result.
// One rune yields one '_', so multi-byte names keep their visible length.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func FileName(job model.GenerationJob) string {
	return SanitizeFilename(job.ProjectName) + fileSuffix
}
