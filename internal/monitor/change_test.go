package monitor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schoolwatch-hk/schoolwatch/internal/monitor"
	"github.com/schoolwatch-hk/schoolwatch/models"
)

func TestClassifyChange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		prevHash string
		newHash  string
		expected models.ChangeType
	}{
		{"first observation", "", "a", models.ChangeNew},
		{"hash changed", "a", "b", models.ChangeUpdated},
		{"hash identical", "a", "a", models.ChangeNoChange},
		{"new hash absent", "a", "", models.ChangeNoChange},
		{"both absent", "", "", models.ChangeNoChange},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, monitor.ClassifyChange(tt.prevHash, tt.newHash))
		})
	}
}
