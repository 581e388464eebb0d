package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadEnv_FallsBackToGoModRoot(t *testing.T) {
	tmp := t.TempDir()

	requireWriteFile(t, filepath.Join(tmp, "go.mod"), "module example.com/test\n\ngo 1.22\n")
	requireWriteFile(t, filepath.Join(tmp, ".env.local"), "SAASKIT_TEST_ENV_LOAD=ok\n")

	sub := filepath.Join(tmp, "modules", "products")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(sub))

	_ = os.Unsetenv("SAASKIT_TEST_ENV_LOAD")

	n, err := LoadEnv([]string{".env", ".env.local"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, "ok", os.Getenv("SAASKIT_TEST_ENV_LOAD"))
}

func TestLoadEnv_NoFiles(t *testing.T) {
	tmp := t.TempDir()
	origWd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Chdir(origWd) })
	require.NoError(t, os.Chdir(tmp))

	n, err := LoadEnv([]string{".env.does-not-exist"})
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRateLimitOptions_Validate(t *testing.T) {
	cases := []struct {
		name    string
		opts    RateLimitOptions
		wantErr bool
	}{
		{name: "memory", opts: RateLimitOptions{Storage: "memory", AuthRPM: 10}},
		{name: "redis without url", opts: RateLimitOptions{Storage: "redis"}, wantErr: true},
		{name: "redis with url", opts: RateLimitOptions{Storage: "redis", RedisURL: "redis://localhost:6379"}},
		{name: "unknown storage", opts: RateLimitOptions{Storage: "etcd"}, wantErr: true},
		{name: "negative rpm", opts: RateLimitOptions{Storage: "memory", AuthRPM: -1}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.opts.Validate()
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	c := &Configuration{CorsOrigins: " http://a.test, ,http://b.test "}
	require.Equal(t, []string{"http://a.test", "http://b.test"}, c.AllowedOrigins())
}

func requireWriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
