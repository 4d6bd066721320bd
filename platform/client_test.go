package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticCreds(token string) CredentialProvider {
	return func(ctx context.Context, userID string) (string, error) {
		return token, nil
	}
}

func testClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAPIClient(srv.URL, staticCreds("tok123"), &APIClientOptions{
		Client: srv.Client(),
	})
}

func TestSubmitPost(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/api/v1/submit", r.URL.Path)
		assert.Equal(http.MethodPost, r.Method)
		assert.Equal("Bearer tok123", r.Header.Get("Authorization"))
		assert.Equal("application/json", r.Header.Get("Content-Type"))

		var in PostInput
		require.NoError(json.NewDecoder(r.Body).Decode(&in))
		assert.Equal("golang", in.Community)

		json.NewEncoder(w).Encode(PostResult{ExternalID: "t3_abc", URL: "https://platform.example/t3_abc"})
	})

	res, err := c.SubmitPost(context.Background(), "alice", PostInput{
		Community: "golang",
		Title:     "Generics in practice",
		Body:      "some words",
	})
	require.NoError(err)
	assert.Equal("t3_abc", res.ExternalID)
	assert.Equal("https://platform.example/t3_abc", res.URL)
}

func TestSubmitComment(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("/api/v1/comment", r.URL.Path)
		json.NewEncoder(w).Encode(CommentResult{ExternalID: "t1_xyz"})
	})

	res, err := c.SubmitComment(context.Background(), "alice", CommentInput{ParentID: "t3_abc", Text: "nice"})
	require.NoError(err)
	assert.Equal("t1_xyz", res.ExternalID)
}

func TestVote(t *testing.T) {
	require := require.New(t)

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal("/api/v1/vote", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "{}")
	})

	require.NoError(c.Vote(context.Background(), "alice", VoteInput{ItemID: "t3_abc", Direction: 1}))
}

func TestErrorResponseMapping(t *testing.T) {
	for _, tc := range []struct {
		status int
		kind   ErrorKind
	}{
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusBadRequest, KindValidation},
		{http.StatusServiceUnavailable, KindTransient},
	} {
		t.Run(fmt.Sprintf("%d", tc.status), func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, `{"error":{"code":"SOME_CODE","message":"nope"}}`)
			})

			_, err := c.SubmitComment(context.Background(), "alice", CommentInput{ParentID: "t3_abc", Text: "hi"})
			require.Error(err)

			var pe *Error
			require.ErrorAs(err, &pe)
			assert.Equal(tc.kind, pe.Kind)
			assert.Equal(tc.status, pe.StatusCode)
			assert.Equal("SOME_CODE", pe.Code)
			assert.Equal("nope", pe.Message)
		})
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream had a bad day")
	})

	_, err := c.SubmitComment(context.Background(), "alice", CommentInput{ParentID: "t3_abc", Text: "hi"})
	var pe *Error
	require.ErrorAs(err, &pe)
	assert.Equal(KindTransient, pe.Kind)
	assert.Equal(http.StatusBadGateway, pe.StatusCode)
}

func TestCredentialProviderFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not reach the platform")
	}))
	t.Cleanup(srv.Close)

	c := NewAPIClient(srv.URL, func(ctx context.Context, userID string) (string, error) {
		return "", fmt.Errorf("no token on file")
	}, &APIClientOptions{Client: srv.Client()})

	_, err := c.SubmitComment(context.Background(), "alice", CommentInput{ParentID: "t3_abc", Text: "hi"})
	assert.True(IsAuth(err))
	require.ErrorContains(err, "no usable credential")
}

func TestValidationShortCircuits(t *testing.T) {
	assert := assert.New(t)

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("invalid input must not be sent")
	})

	_, err := c.SubmitPost(context.Background(), "alice", PostInput{Community: "golang"})
	assert.True(IsValidation(err))

	err = c.Vote(context.Background(), "alice", VoteInput{ItemID: "t3_x", Direction: 5})
	assert.True(IsValidation(err))
}
