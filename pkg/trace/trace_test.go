package trace

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsure(t *testing.T) {
	ctx := Ensure(context.Background())
	id := FromContext(ctx)
	assert.Len(t, id, 32)

	// an existing id is kept
	assert.Equal(t, id, FromContext(Ensure(ctx)))
}

func TestWithContext_RejectsBadIDs(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, FromContext(WithContext(ctx, "   ")))
	assert.Empty(t, FromContext(WithContext(ctx, strings.Repeat("a", 65))))
	assert.Equal(t, "abc", FromContext(WithContext(ctx, " abc ")))
}
