package pipeline

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/l0p7/admitgate/internal/admiterr"
	"github.com/l0p7/admitgate/internal/checker"
	"github.com/l0p7/admitgate/internal/sink"
	"github.com/l0p7/admitgate/internal/templates"
)

func TestServeAdmitAdmitted(t *testing.T) {
	s := sink.New(10, nil, nil)
	p := New([]checker.Checker{&stubChecker{name: "rate_limit"}}, s)

	rec := httptest.NewRecorder()
	req := newRequest()
	p.ServeAdmit(rec, req)

	require.Equal(t, 200, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	var body admitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.False(t, body.Blocked)
}

func TestServeAdmitBlockedSetsRetryAfter(t *testing.T) {
	s := sink.New(10, nil, nil)
	p := New([]checker.Checker{
		&stubChecker{name: "rate_limit", err: admiterr.RateLimitExceeded{RetryAfter: 7}},
	}, s)

	rec := httptest.NewRecorder()
	p.ServeAdmit(rec, newRequest())

	require.Equal(t, 429, rec.Code)
	require.Equal(t, "7", rec.Header().Get("Retry-After"))

	var body admitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Blocked)
	require.Equal(t, "rate limit exceeded", body.Reason)
}

func TestServeAdmitUsesMessageTemplate(t *testing.T) {
	s := sink.New(10, nil, nil)
	p := New([]checker.Checker{
		&stubChecker{name: "authentication", err: admiterr.AuthenticationFailed{Msg: "no credential"}},
	}, s)

	mt := NewMessageTemplates(templates.NewRenderer(nil))
	require.NoError(t, mt.Compile("default", "custom: {{.StatusCode}}"))
	p.SetMessageTemplates(mt)

	rec := httptest.NewRecorder()
	p.ServeAdmit(rec, newRequest())

	var body admitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "custom: 401", body.Reason)
}
