package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsWrapSentinels(t *testing.T) {
	assert.ErrorIs(t, Denied("bad keyword"), ErrAdmissionDenied)
	assert.ErrorIs(t, Timeout("exceeded 30s"), ErrTimeout)
	assert.ErrorIs(t, Unavailable(fmt.Errorf("dial tcp: refused")), ErrUnavailable)
	assert.ErrorIs(t, NotFound("users"), ErrNotFound)

	assert.Contains(t, Denied("bad keyword").Error(), "bad keyword")
	assert.Contains(t, NotFound("users").Error(), `"users"`)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Timeout("exceeded")))
	assert.True(t, IsRetryable(fmt.Errorf("%w: busy", ErrPoolExhausted)))
	assert.True(t, IsRetryable(Unavailable(fmt.Errorf("down"))))

	assert.False(t, IsRetryable(Denied("nope")))
	assert.False(t, IsRetryable(NotFound("users")))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(fmt.Errorf("some other error")))
}
