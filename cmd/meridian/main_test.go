package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"meridian/internal/credentials/storage"
	"meridian/internal/platform/config"
	"meridian/internal/platform/logger"
	"meridian/internal/platform/metrics"
	"meridian/internal/platform/tracer"
	"meridian/internal/transport/apiclient"
	"meridian/pkg/testutil"
	"meridian/pkg/testutil/backend"
)

const (
	testEmail    = "ana@acme.io"
	testPassword = "s3cretpass"
)

type testApp struct {
	*app
	backend *backend.Backend
	out     *bytes.Buffer
}

// newTestApp wires the client against the in-process backend, reading input
// from the given lines.
func newTestApp(t *testing.T, location string, lines ...string) *testApp {
	t.Helper()
	out := &bytes.Buffer{}
	a := newApp(strings.NewReader(strings.Join(lines, "\n")+"\n"), out, io.Discard)

	cfg, err := config.FromMap(map[string]string{
		"MERIDIAN_API_HOST":        "api.test",
		"MERIDIAN_ROOT_DOMAIN":     "app.test",
		"MERIDIAN_POSTAL_BASE_URL": "https://cep.test",
	})
	require.NoError(t, err)
	a.cfg = cfg
	a.log = logger.Discard()
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	a.tracer = tracer.NewNoop()

	b := backend.New()
	b.AddTenant(*testutil.NewTenantBuilder().WithTheme("#112233", "Hello there").Build())
	b.AddUser(testEmail, testPassword, *testutil.NewUserBuilder().WithID("7").WithNickname("ana").Build(), "acme")
	b.AddAddress("01001000", backend.Address{CEP: "01001-000", Logradouro: "Praça da Sé", Bairro: "Sé", Localidade: "São Paulo", UF: "SP"})

	require.NoError(t, a.wire(storage.NewMemory(), apiclient.WithHTTPClient(b.Doer())))
	require.NoError(t, a.auth.Boot(context.Background(), location))
	return &testApp{app: a, backend: b, out: out}
}

// run executes a command without the environment-driven setup.
func (ta *testApp) run(args ...string) error {
	root := newRootCommand(ta.app)
	root.PersistentPreRunE = nil
	root.SetArgs(args)
	root.SetOut(ta.out)
	err := root.ExecuteContext(context.Background())
	ta.flush()
	return err
}
