package main

import (
	"net/http/httptest"
	"testing"

	"github.com/gavv/httpexpect/v2"

	"github.com/l0p7/admitgate/internal/authcheck"
	"github.com/l0p7/admitgate/internal/checker"
	"github.com/l0p7/admitgate/internal/pipeline"
	"github.com/l0p7/admitgate/internal/ratelimit"
	"github.com/l0p7/admitgate/internal/scorer"
	"github.com/l0p7/admitgate/internal/server"
	"github.com/l0p7/admitgate/internal/sink"
	"github.com/l0p7/admitgate/internal/validation"
)

// newIntegrationServer wires the same four stages cmd/main.go wires, with
// permissive-but-real configuration, and returns an httptest.Server
// fronting the /admit surface end to end.
func newIntegrationServer(t *testing.T) *httptest.Server {
	t.Helper()

	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{
		Enabled:           true,
		RequestsPerSecond: 2,
		Burst:             2,
	})
	t.Cleanup(func() { _ = limiter.Close() })
	rateLimitChecker := ratelimit.NewChecker(limiter, true)

	principals, err := authcheck.CompilePrincipals([]authcheck.PrincipalSpec{
		{UserID: "integration", Roles: []string{"caller"}, Bearer: []string{"integration-token"}},
	})
	if err != nil {
		t.Fatalf("compile principals: %v", err)
	}
	authChecker := authcheck.NewChecker(authcheck.Config{
		Enabled:     true,
		RequireAuth: true,
		HeaderName:  "X-Api-Key",
	}, principals)

	validationChecker := validation.NewChecker(validation.Config{
		Enabled:        true,
		MaxBodyBytes:   1 << 20,
		MaxHeaderBytes: 1 << 16,
		AllowedMethods: []string{"GET", "POST"},
	})

	threatScorer := scorer.New(scorer.Config{
		Enabled:            true,
		BlockSuspicious:    true,
		CategoryThreshold:  40,
		AggregateThreshold: 100,
	}, nil)
	threatChecker := scorer.NewChecker(threatScorer)

	obsSink := sink.New(64, nil, nil)
	pipe := pipeline.New([]checker.Checker{
		rateLimitChecker,
		authChecker,
		validationChecker,
		threatChecker,
	}, obsSink)

	mux := server.NewRouter(pipe, nil)
	return httptest.NewServer(mux)
}

func TestIntegrationAdmitAuthenticatedRequest(t *testing.T) {
	srv := newIntegrationServer(t)
	defer srv.Close()

	expect := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  srv.URL,
		Reporter: httpexpect.NewRequireReporter(t),
	})

	result := expect.GET("/admit").
		WithHeader("Authorization", "Bearer integration-token").
		Expect()
	result.Status(200)
	payload := result.JSON().Object()
	payload.Value("blocked").Boolean().IsFalse()
	payload.Value("user_id").String().IsEqual("integration")
}

func TestIntegrationAdmitMissingCredentialRejected(t *testing.T) {
	srv := newIntegrationServer(t)
	defer srv.Close()

	expect := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  srv.URL,
		Reporter: httpexpect.NewRequireReporter(t),
	})

	result := expect.GET("/admit").Expect()
	result.Status(401)
	result.JSON().Object().Value("blocked").Boolean().IsTrue()
}

func TestIntegrationAdmitDisallowedMethodRejected(t *testing.T) {
	srv := newIntegrationServer(t)
	defer srv.Close()

	expect := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  srv.URL,
		Reporter: httpexpect.NewRequireReporter(t),
	})

	expect.DELETE("/admit").
		WithHeader("Authorization", "Bearer integration-token").
		Expect().
		Status(400)
}

func TestIntegrationAdmitRateLimitExceeded(t *testing.T) {
	srv := newIntegrationServer(t)
	defer srv.Close()

	expect := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  srv.URL,
		Reporter: httpexpect.NewRequireReporter(t),
	})

	req := func() *httpexpect.Response {
		return expect.GET("/admit").
			WithHeader("Authorization", "Bearer integration-token").
			Expect()
	}

	req().Status(200)
	req().Status(200)
	req().Status(429)
}

func TestIntegrationHealthz(t *testing.T) {
	srv := newIntegrationServer(t)
	defer srv.Close()

	expect := httpexpect.WithConfig(httpexpect.Config{
		BaseURL:  srv.URL,
		Reporter: httpexpect.NewRequireReporter(t),
	})

	expect.GET("/healthz").Expect().Status(200)
}
