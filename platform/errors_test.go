package platform

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindForStatus(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(KindAuth, kindForStatus(http.StatusUnauthorized))
	assert.Equal(KindAuth, kindForStatus(http.StatusForbidden))
	assert.Equal(KindRateLimited, kindForStatus(http.StatusTooManyRequests))
	assert.Equal(KindValidation, kindForStatus(http.StatusBadRequest))
	assert.Equal(KindValidation, kindForStatus(http.StatusNotFound))
	assert.Equal(KindTransient, kindForStatus(http.StatusInternalServerError))
	assert.Equal(KindTransient, kindForStatus(http.StatusBadGateway))
}

func TestClassify(t *testing.T) {
	assert := assert.New(t)

	authErr := &Error{Kind: KindAuth, StatusCode: 401}
	assert.Equal(KindAuth, Classify(authErr))
	assert.True(IsAuth(authErr))
	assert.False(IsTransient(authErr))

	// classification survives wrapping
	wrapped := fmt.Errorf("submitting post: %w", &Error{Kind: KindRateLimited, StatusCode: 429})
	assert.True(IsRateLimited(wrapped))

	assert.True(IsTransient(context.DeadlineExceeded))
	assert.True(IsTransient(context.Canceled))
	assert.True(IsTransient(fmt.Errorf("something else entirely")))
	assert.True(IsValidation(&Error{Kind: KindValidation}))
}

func TestErrorString(t *testing.T) {
	assert := assert.New(t)

	e := &Error{Kind: KindValidation, StatusCode: 400, Code: "BAD_TITLE", Message: "title too long"}
	assert.Contains(e.Error(), "BAD_TITLE")
	assert.Contains(e.Error(), "title too long")

	e = &Error{Kind: KindTransient, Wrapped: fmt.Errorf("connection refused")}
	assert.Contains(e.Error(), "connection refused")
	assert.ErrorContains(e, "transient")
}

func TestInputValidation(t *testing.T) {
	assert := assert.New(t)

	assert.NoError((&PostInput{Community: "golang", Title: "t", Body: "b"}).Validate())
	assert.NoError((&PostInput{Community: "golang", Title: "t", URL: "https://example.com"}).Validate())
	assert.Error((&PostInput{Title: "t", Body: "b"}).Validate())
	assert.Error((&PostInput{Community: "golang", Body: "b"}).Validate())
	assert.Error((&PostInput{Community: "golang", Title: "t"}).Validate())
	assert.Error((&PostInput{Community: "golang", Title: "t", Body: "b", URL: "https://x"}).Validate())

	assert.NoError((&CommentInput{ParentID: "t3_x", Text: "hi"}).Validate())
	assert.Error((&CommentInput{Text: "hi"}).Validate())
	assert.Error((&CommentInput{ParentID: "t3_x"}).Validate())

	assert.NoError((&VoteInput{ItemID: "t3_x", Direction: 1}).Validate())
	assert.NoError((&VoteInput{ItemID: "t3_x", Direction: -1}).Validate())
	assert.NoError((&VoteInput{ItemID: "t3_x", Direction: 0}).Validate())
	assert.Error((&VoteInput{Direction: 1}).Validate())
	assert.Error((&VoteInput{ItemID: "t3_x", Direction: 2}).Validate())
}
