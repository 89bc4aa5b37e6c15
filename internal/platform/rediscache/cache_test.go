package rediscache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yungbote/winegraph/internal/platform/logger"
)

func TestEntryKey(t *testing.T) {
	assert.Equal(t, "winegraph:q:v3:search|pinot|20|5", entryKey(defaultPrefix, 3, "search|pinot|20|5"))
	assert.NotEqual(t, entryKey(defaultPrefix, 1, "k"), entryKey(defaultPrefix, 2, "k"))
}

func TestNewRequiresAddr(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	_, err := New(context.Background(), logger.Nop(), Config{})
	assert.Error(t, err)
}
