package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mchmarny/dietpulse/pkg/config"
	"github.com/mchmarny/dietpulse/pkg/data"
	"github.com/mchmarny/dietpulse/pkg/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

const testCSV = `ISO3,factor_set,depression,anxiety
USA,fruits|eggs,45,0.3
CAN,fruits|whole_grains,0.2,0.25
USA,processed_meats|sodium,0.6,
MEX,,,0.5
`

type testEnv struct {
	dir    string
	csv    string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "gdd.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testCSV), 0600))
	return &testEnv{
		dir:    dir,
		csv:    csvPath,
		config: filepath.Join(dir, config.FileName),
	}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	app.ErrWriter = io.Discard

	full := append([]string{appName,
		"--db", filepath.Join(e.dir, data.DataFileName),
		"--config", e.config,
	}, args...)
	err := app.Run(t.Context(), full)
	return buf.String(), err
}

func (e *testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, "args: %v", args)
	return out
}

func (e *testEnv) importTestData(t *testing.T) {
	t.Helper()
	e.mustRun(t, "import", "--name", "gdd", "--file", e.csv)
}

func TestImportAndList(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "import", "--name", "gdd", "--file", env.csv)
	var ds data.Dataset
	require.NoError(t, json.Unmarshal([]byte(out), &ds))
	assert.Equal(t, "gdd", ds.Name)
	assert.Equal(t, 4, ds.Rows)
	assert.Equal(t, []string{"ISO3", "factor_set", "depression", "anxiety"}, ds.Columns)

	out = env.mustRun(t, "list")
	var list []*data.Dataset
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, env.csv, list[0].Source)
}

func TestImport_Invalid(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "import", "--name", "gdd")
	assert.Error(t, err)

	_, err = env.run(t, "import", "--name", "gdd", "--file", env.csv, "--url", "http://localhost/x.csv")
	assert.Error(t, err)

	_, err = env.run(t, "import", "--name", "gdd", "--file", filepath.Join(env.dir, "nope.csv"))
	assert.Error(t, err)
}

func TestImport_URLWithToken(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set(keyringService, keyringUser, "secret"))
	t.Cleanup(func() { _ = keyring.Delete(keyringService, keyringUser) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, testCSV)
	}))
	t.Cleanup(srv.Close)

	env := newTestEnv(t)
	out := env.mustRun(t, "import", "--name", "remote", "--url", srv.URL+"/gdd.csv")

	var ds data.Dataset
	require.NoError(t, json.Unmarshal([]byte(out), &ds))
	assert.Equal(t, 4, ds.Rows)
	assert.Equal(t, srv.URL+"/gdd.csv", ds.Source)
}

func TestImport_URLSave(t *testing.T) {
	keyring.MockInit()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, testCSV)
	}))
	t.Cleanup(srv.Close)

	env := newTestEnv(t)
	local := filepath.Join(env.dir, "copy.csv")

	_, err := env.run(t, "import", "--name", "gdd", "--file", env.csv, "--save", local)
	assert.Error(t, err)

	out := env.mustRun(t, "--no-color", "import", "--name", "gdd", "--url", srv.URL+"/gdd.csv", "--save", local)
	var ds data.Dataset
	require.NoError(t, json.Unmarshal([]byte(out), &ds))
	assert.Equal(t, 4, ds.Rows)
	assert.Equal(t, srv.URL+"/gdd.csv", ds.Source)

	b, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, testCSV, string(b))
}

func TestScore(t *testing.T) {
	env := newTestEnv(t)
	env.importTestData(t)

	out := env.mustRun(t, "score", "--name", "gdd", "--out", "scored")
	var res ScoreResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "scored", res.SavedAs)
	assert.Equal(t, 4, res.Summary.Rows)
	assert.Equal(t, 4, res.Summary.Scored)

	out = env.mustRun(t, "list")
	var list []*data.Dataset
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "scored", list[1].Name)
	assert.Contains(t, list[1].Columns, "diversity_score")
}

func TestNormalize(t *testing.T) {
	env := newTestEnv(t)
	env.importTestData(t)

	out := env.mustRun(t, "normalize", "--name", "gdd")
	var res NormalizeResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Empty(t, res.SavedAs)
	assert.Contains(t, res.Result.Normalized, "depression")
	assert.Contains(t, res.Result.Normalized, "anxiety")
}

func TestCorrelate(t *testing.T) {
	env := newTestEnv(t)
	env.importTestData(t)

	out := env.mustRun(t, "correlate", "--name", "gdd")
	var res CorrelationReport
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, 1, res.GridRows)
	assert.Equal(t, 3, res.GridCols)
	assert.Len(t, res.Outcomes[0].Features, 4)

	out = env.mustRun(t, "correlate", "--name", "gdd", "--scatter")
	var sc ScatterReport
	require.NoError(t, json.Unmarshal([]byte(out), &sc))
	require.Len(t, sc.Pairs, 8)
	assert.Equal(t, 2, sc.GridRows)
	assert.Equal(t, 4, sc.GridCols)
	assert.Equal(t, "anxiety", sc.Pairs[0].Outcome)
	assert.Equal(t, "plant_based_score", sc.Pairs[0].Feature)
	assert.Equal(t, "depression", sc.Pairs[sc.GridCols].Outcome)
	assert.Equal(t, "plant_based_score", sc.Pairs[sc.GridCols].Feature)
}

func TestCountriesAndRegions(t *testing.T) {
	env := newTestEnv(t)

	conf := config.Default()
	conf.Regions = map[string]string{
		"USA": "North America",
		"CAN": "North America",
		"MEX": "Latin America",
	}
	require.NoError(t, config.Save(env.config, conf))
	env.importTestData(t)

	out := env.mustRun(t, "countries", "--name", "gdd", "--top", "1")
	var res DistributionReport
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Items, 1)
	assert.Equal(t, "USA", res.Items[0].Name)
	assert.Equal(t, 2, res.Items[0].Count)

	out = env.mustRun(t, "regions", "--name", "gdd")
	res = DistributionReport{}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Items, 2)
	assert.Equal(t, "North America", res.Items[0].Name)
	assert.Equal(t, 3, res.Items[0].Count)
}

func TestRegions_URL(t *testing.T) {
	keyring.MockInit()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/regions.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `{"USA":"Americas","CAN":"Americas","MEX":"Americas"}`)
	}))
	t.Cleanup(srv.Close)

	env := newTestEnv(t)
	env.importTestData(t)

	out := env.mustRun(t, "regions", "--name", "gdd", "--regions-url", srv.URL+"/regions.json")
	var res DistributionReport
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Americas", res.Items[0].Name)
	assert.Equal(t, 4, res.Items[0].Count)

	_, err := env.run(t, "regions", "--name", "gdd", "--regions-url", srv.URL+"/nope.json")
	assert.Error(t, err)
}

func TestMissing(t *testing.T) {
	env := newTestEnv(t)
	env.importTestData(t)

	out := env.mustRun(t, "missing", "--name", "gdd", "--matrix")
	var res MissingReport
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 4, res.Rows)
	require.Len(t, res.Columns, 4)
	assert.Equal(t, 1, res.Columns[2].Missing)
	require.NotNil(t, res.Matrix)
	assert.Len(t, res.Matrix.Cells, 4)
}

func TestExport(t *testing.T) {
	env := newTestEnv(t)
	env.importTestData(t)

	out := env.mustRun(t, "export", "--name", "gdd")
	assert.True(t, strings.HasPrefix(out, "ISO3,factor_set,depression,anxiety\n"))

	path := filepath.Join(env.dir, "out.csv")
	env.mustRun(t, "export", "--name", "gdd", "--file", path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	tbl, err := table.ReadCSV(f, config.Default().CSVOptions())
	require.NoError(t, err)
	assert.Equal(t, 4, tbl.Len())
	fs, ok := tbl.Get(0, "factor_set").Factors()
	require.True(t, ok)
	assert.True(t, fs.Has("eggs"))
}

func TestDeleteAndReset(t *testing.T) {
	env := newTestEnv(t)
	env.importTestData(t)

	env.mustRun(t, "delete", "--name", "gdd")
	_, err := env.run(t, "delete", "--name", "gdd")
	assert.ErrorIs(t, err, data.ErrDatasetNotFound)

	_, err = env.run(t, "score", "--name", "gdd")
	assert.ErrorIs(t, err, data.ErrDatasetNotFound)

	env.importTestData(t)
	out := env.mustRun(t, "reset", "--yes")
	assert.JSONEq(t, `{"deleted": 1}`, out)
	assert.Equal(t, "[]\n", env.mustRun(t, "list"))
}

func TestFormatYAML(t *testing.T) {
	env := newTestEnv(t)
	env.importTestData(t)

	out := env.mustRun(t, "--format", "yaml", "list")
	assert.Contains(t, out, "name: gdd")

	_, err := env.run(t, "--format", "xml", "list")
	assert.Error(t, err)
}

func TestToken(t *testing.T) {
	keyring.MockInit()
	env := newTestEnv(t)

	out := env.mustRun(t, "token", "--value", "abcdef12")
	var st TokenStatus
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Saved)
	assert.Equal(t, "abcd****", st.Masked)

	out = env.mustRun(t, "token", "--clear")
	st = TokenStatus{}
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.False(t, st.Saved)
}

func TestTokenFileFallback(t *testing.T) {
	keyring.MockInitWithError(assert.AnError)
	t.Cleanup(keyring.MockInit)

	cfg := &appConfig{ConfigPath: filepath.Join(t.TempDir(), config.FileName)}
	_, err := getToken(cfg)
	assert.ErrorIs(t, err, errNoToken)

	require.NoError(t, saveToken(cfg, "from-file"))
	token, err := getToken(cfg)
	require.NoError(t, err)
	assert.Equal(t, "from-file", token)

	require.NoError(t, clearToken(cfg))
	_, err = getToken(cfg)
	assert.ErrorIs(t, err, errNoToken)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", formatJSON, false},
		{"json", formatJSON, false},
		{"yaml", formatYAML, false},
		{"yml", formatYAML, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "***", mask("abc"))
	assert.Equal(t, "toke*", mask("token"))
}
