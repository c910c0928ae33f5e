package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeUnique(t *testing.T) {
	t.Run("earlier lists win the ordering", func(t *testing.T) {
		got := MergeUnique(
			[]string{"finance_admin"},
			[]string{"viewer", "finance_admin"},
			[]string{"viewer"})
		assert.Equal(t, []string{"finance_admin", "viewer"}, got)
	})

	t.Run("dedupes within one list", func(t *testing.T) {
		got := MergeUnique([]string{"admin", "hr", "admin"})
		assert.Equal(t, []string{"admin", "hr"}, got)
	})

	t.Run("drops empty values", func(t *testing.T) {
		got := MergeUnique([]string{"", "ops"}, []string{""})
		assert.Equal(t, []string{"ops"}, got)
	})

	t.Run("no input yields nil", func(t *testing.T) {
		assert.Nil(t, MergeUnique())
		assert.Nil(t, MergeUnique(nil, []string{}))
	})
}
