package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMapping() map[string]interface{} {
	return map[string]interface{}{
		"username":      "svc-backup",
		"password":      "s3cr3t-value",
		"server_type":   "linux",
		"session_token": "0b6dd438-6d28-4aa9-9f2f-6dd67f1c6b70",
		"token_expiry":  int64(1767225600),
		"generated_at":  "2026-01-01T00:00:00Z",
	}
}

func TestEnvSortedUppercase(t *testing.T) {
	t.Parallel()

	out := Env(sampleMapping())
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 6)

	assert.Equal(t, "GENERATED_AT=2026-01-01T00:00:00Z", lines[0])
	assert.Equal(t, "PASSWORD=s3cr3t-value", lines[1])
	assert.Equal(t, "SERVER_TYPE=linux", lines[2])
	assert.Equal(t, "SESSION_TOKEN=0b6dd438-6d28-4aa9-9f2f-6dd67f1c6b70", lines[3])
	assert.Equal(t, "TOKEN_EXPIRY=1767225600", lines[4])
	assert.Equal(t, "USERNAME=svc-backup", lines[5])
}

func TestEnvRoundTrip(t *testing.T) {
	t.Parallel()

	m := sampleMapping()
	parsed := ParseEnv(Env(m))

	require.Len(t, parsed, len(m))
	for k, v := range m {
		assert.Equal(t, formatValue(v), parsed[strings.ToUpper(k)], "key %s", k)
	}
}

func TestExportQuoting(t *testing.T) {
	t.Parallel()

	out := Export(map[string]interface{}{
		"password": `it's "tricky" $PATH`,
	})
	assert.Equal(t, `export PASSWORD='it'\''s "tricky" $PATH'`+"\n", out)
}

func TestExportAllKeys(t *testing.T) {
	t.Parallel()

	out := Export(sampleMapping())
	assert.Contains(t, out, "export USERNAME='svc-backup'\n")
	assert.Contains(t, out, "export TOKEN_EXPIRY='1767225600'\n")
	assert.Equal(t, 6, strings.Count(out, "export "))
}

func TestJSON(t *testing.T) {
	t.Parallel()

	out, err := JSON(sampleMapping())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(out), "\n"))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "svc-backup", decoded["username"])
	assert.Equal(t, float64(1767225600), decoded["token_expiry"])
}

func TestParseEnvSkipsMalformedLines(t *testing.T) {
	t.Parallel()

	parsed := ParseEnv("A=1\n\nnot a pair\n=orphan\nB=x=y\n")
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y"}, parsed)
}
