package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestValidEmail(t *testing.T) {
	ok := []string{"a@b.co", "john.doe@example.com", "x-y@mail.example.org"}
	for _, e := range ok {
		assert.True(t, ValidEmail(e), e)
	}
	bad := []string{"", "plain", "a@b", "a@b.c", "@example.com", "a b@example.com"}
	for _, e := range bad {
		assert.False(t, ValidEmail(e), e)
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "alice@example.com", NormalizeEmail("  Alice@Example.COM "))
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("Bob"))
	assert.ErrorIs(t, ValidateName(""), ErrValidation)
	assert.ErrorIs(t, ValidateName(strings.Repeat("x", NameMaxLen+1)), ErrValidation)
	assert.NoError(t, ValidateName(strings.Repeat("é", NameMaxLen)))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword("123456"))
	assert.ErrorIs(t, ValidatePassword("12345"), ErrValidation)
}

func TestValidateCountry(t *testing.T) {
	assert.NoError(t, ValidateCountry(""))
	assert.ErrorIs(t, ValidateCountry(strings.Repeat("c", CountryMaxLen+1)), ErrValidation)
}

func TestTruncateSearch(t *testing.T) {
	assert.Equal(t, "bob", TruncateSearch("  bob "))
	long := strings.Repeat("ä", SearchMaxLen+20)
	got := TruncateSearch(long)
	assert.Equal(t, strings.Repeat("ä", SearchMaxLen), got)
	assert.True(t, utf8.ValidString(got))
	// 截断后尾部空白去掉
	assert.Equal(t, strings.Repeat("a", SearchMaxLen-1), TruncateSearch(strings.Repeat("a", SearchMaxLen-1)+" tail"))
}

func TestUserPatchEmpty(t *testing.T) {
	assert.True(t, UserPatch{}.Empty())
	n := "x"
	assert.False(t, UserPatch{Name: &n}.Empty())
}

func TestErrorKindMatching(t *testing.T) {
	err := NotFound("user %s not found", "42")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidID)

	wrapped := fmt.Errorf("handler: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.Equal(t, KindNotFound, KindOf(wrapped))

	assert.Equal(t, KindUnexpected, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnexpected, KindOf(Unexpected("db", errors.New("down"))))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("driver said no")
	err := Unexpected("insert user", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "insert user: driver said no", err.Error())
	assert.Equal(t, "email a@b.co already exists", DuplicateEmail("a@b.co").Error())
}
