package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		remote string
		want   ItemStatus
	}{
		{"open", StatusOpen},
		{"OPEN", StatusOpen},
		{"closed", StatusResolved},
		{"CLOSED", StatusResolved},
		{"Closed", StatusResolved},
		{"", StatusOpen},
		{"merged", StatusOpen},
		{"unknown", StatusOpen},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapStatus(tt.remote), "remote state %q", tt.remote)
	}
}

func TestItemStatus_Scan(t *testing.T) {
	var s ItemStatus
	require.NoError(t, s.Scan("resolved"))
	assert.Equal(t, StatusResolved, s)

	require.NoError(t, s.Scan([]byte("open")))
	assert.Equal(t, StatusOpen, s)

	assert.Error(t, s.Scan(nil))
	assert.Error(t, s.Scan("closed"))
	assert.Error(t, s.Scan(42))
}

func TestItemStatus_Value(t *testing.T) {
	v, err := StatusResolved.Value()
	require.NoError(t, err)
	assert.Equal(t, "resolved", v)

	_, err = ItemStatus("closed").Value()
	assert.Error(t, err)
}

func TestTruncateDescription(t *testing.T) {
	short := "short body"
	assert.Equal(t, short, TruncateDescription(short))

	long := strings.Repeat("x", 1500)
	assert.Len(t, TruncateDescription(long), MaxDescriptionLength)

	multibyte := strings.Repeat("ü", 1001)
	got := TruncateDescription(multibyte)
	assert.Len(t, []rune(got), MaxDescriptionLength)

	exact := strings.Repeat("ü", 1000)
	assert.Equal(t, exact, TruncateDescription(exact))
}
