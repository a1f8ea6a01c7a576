package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIs_SentinelsStayDistinct(t *testing.T) {
	assert.True(t, errors.Is(ErrUserNotFound, ErrUserNotFound))
	assert.False(t, errors.Is(ErrUserNotFound, ErrThreadNotFound))
	assert.True(t, errors.Is(ErrUserNotFound, &Error{Kind: KindNotFound}))
}

func TestValidation_CarriesReasonsAndCauses(t *testing.T) {
	err := Validation("invalid user", ErrUsernameTaken, ErrPasswordTooShort)

	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, []string{"User exists.", "Password must be at least 6 characters."}, ReasonsOf(err))
	assert.True(t, errors.Is(err, ErrUsernameTaken))
	assert.True(t, errors.Is(err, ErrPasswordTooShort))
	assert.False(t, errors.Is(err, ErrPasswordMismatch))
}

func TestInvalidRecipients_CopiesTokens(t *testing.T) {
	tokens := []string{"ghost"}
	err := InvalidRecipients(tokens)
	tokens[0] = "changed"

	assert.Equal(t, KindInvalidRecipients, KindOf(err))
	assert.Equal(t, []string{"ghost"}, TokensOf(err))
	assert.Contains(t, err.Error(), "ghost")
}

func TestKindOf_WrappedAndForeign(t *testing.T) {
	wrapped := fmt.Errorf("loading inbox: %w", StoreUnavailable("get", errors.New("dial tcp")))

	assert.Equal(t, KindStoreUnavailable, KindOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.Contains(t, wrapped.Error(), "dial tcp")
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(ErrDecryptFailed))
	assert.True(t, IsRecoverable(InvalidRecipients([]string{"x"})))
	assert.False(t, IsRecoverable(StoreUnavailable("incr", errors.New("timeout"))))
	assert.False(t, IsRecoverable(errors.New("boom")))
}
