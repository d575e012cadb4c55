package monitor

import "github.com/schoolwatch-hk/schoolwatch/models"

// ClassifyChange compares the freshly computed content hash against the
// latest stored hash for the same (school, URL) pair.
func ClassifyChange(prevHash, newHash string) models.ChangeType {
	switch {
	case prevHash == "" && newHash != "":
		return models.ChangeNew
	case prevHash != "" && newHash != "" && prevHash != newHash:
		return models.ChangeUpdated
	default:
		return models.ChangeNoChange
	}
}
