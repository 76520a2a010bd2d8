package errors

import (
	"fmt"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnnotatedError(t *testing.T) {
	err := New("test error", slog.String("id", "123"))
	require.Equal(t, "test error", err.Error())

	// Assert that wrapping sentinel errors work as expected.
	sentinel := NewSentinel("test error")
	require.NotErrorIs(t, err, NewSentinel("test error"))
	wrapped := Wrap(sentinel, "load case", slog.String("case_id", "abc"))
	require.ErrorIs(t, wrapped, sentinel)
	require.Equal(t, "load case: test error", wrapped.Error())

	// Ensure log values are coming through.
	var annotated AnnotatedError
	require.True(t, As(err, &annotated))
	group := annotated.LogValue().Group()
	require.Contains(t, group, slog.String("id", "123"))

	// Assert there's a valid source
	sourceIdx := slices.IndexFunc(group, func(attr slog.Attr) bool {
		return attr.Key == "source"
	})
	require.NotEqual(t, -1, sourceIdx)
	require.Contains(t, group[sourceIdx].Value.String(), "annotatederror_test.go")
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(nil, "nothing happened"))
}

func TestSlogError(t *testing.T) {
	inner := Wrap(NewSentinel("no rows"), "query case", slog.String("case_id", "abc"))
	outer := Wrap(inner, "save case", slog.String("user", "u1"))
	plain := fmt.Errorf("handler: %w", outer)

	attr := SlogError(plain)
	require.Equal(t, "error", attr.Key)
	group := attr.Value.Group()
	require.Contains(t, group, slog.String("msg", "handler: save case: query case: no rows"))
	require.Contains(t, group, slog.String("case_id", "abc"))
	require.Contains(t, group, slog.String("user", "u1"))

	require.Equal(t, slog.String("error", "boom"), SlogError(NewSentinel("boom")))
}
