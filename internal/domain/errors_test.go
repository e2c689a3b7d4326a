package domain

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	err := NewError(KindForbiddenPermanent, "access forbidden: %s", "insufficientPermissions")
	require.True(t, IsKind(err, KindForbiddenPermanent))
	require.False(t, IsKind(err, KindUnauthorized))
	require.False(t, err.Retryable())

	wrapped := fmt.Errorf("job failed: %w", err)
	require.True(t, IsKind(wrapped, KindForbiddenPermanent))

	classified, ok := AsExtractionError(wrapped)
	require.True(t, ok)
	require.Equal(t, KindForbiddenPermanent, classified.Kind)

	_, ok = AsExtractionError(fmt.Errorf("plain"))
	require.False(t, ok)

	require.True(t, NewError(KindForbiddenTransient, "slow down").Retryable())
	require.True(t, NewError(KindServiceUnavailable, "boom").Retryable())
	require.False(t, NewError(KindBadRequest, "bad query").Retryable())
}

func TestWrapErrorUnwraps(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := WrapError(KindServiceUnavailable, cause, "reporting API unreachable")
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "reporting API unreachable")
	require.Contains(t, err.Error(), "connection refused")
}

func TestRunStatusMarshal(t *testing.T) {
	status := RunStatus{}
	status.Set("a", "profile-111", "visitors", JobStatus{})
	status.Set("a", "profile-111", "content", JobStatus{Err: "access forbidden"})

	data, err := json.Marshal(status)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"a": {
			"profile-111": {
				"visitors": "ok",
				"content": {"error": "access forbidden"}
			}
		}
	}`, string(data))

	ok, found := status.Get("a", "profile-111", "visitors")
	require.True(t, found)
	require.True(t, ok.OK())

	_, found = status.Get("b", "profile-111", "visitors")
	require.False(t, found)
}
