package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/erpseed/internal/ir"
	"github.com/roach88/erpseed/internal/testutil"
)

var testNow = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

// cliHarness runs commands against one sites dir with deterministic
// session ids and a frozen clock.
type cliHarness struct {
	t    *testing.T
	dir  string
	opts *RootOptions
}

func newHarness(t *testing.T) *cliHarness {
	t.Helper()
	t.Setenv("ERPSEED_SITE", "")
	t.Setenv("VERIFACTU_API_KEY", "")
	return &cliHarness{
		t:   t,
		dir: t.TempDir(),
		opts: &RootOptions{
			IDs: testutil.SequentialIDs("test-session", 10),
			Now: testutil.NewStepClock(testNow, 0).Now,
		},
	}
}

func (h *cliHarness) run(args ...string) (stdout, stderr string, code int) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--sites-dir", h.dir}, args...)
	code = execute(context.Background(), h.opts, full, &out, &errOut)
	return out.String(), errOut.String(), code
}

func (h *cliHarness) writeFile(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func decodeResponse(t *testing.T, stdout string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	return resp
}

func TestCompanies_TextReport(t *testing.T) {
	h := newHarness(t)

	stdout, _, code := h.run("companies", "--skip-future")
	require.Equal(t, ExitSuccess, code, stdout)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "companies_skip_future", []byte(stdout))
}

func TestCompanies_RerunIsUnchanged(t *testing.T) {
	h := newHarness(t)

	_, _, code := h.run("companies")
	require.Equal(t, ExitSuccess, code)

	stdout, _, code := h.run("companies")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "= unchanged Company{company_name=Galaxy Bio} (#2)")
	assert.Contains(t, stdout, "Session test-session-2 committed: 0 created, 20 updated, 0 failed")
	assert.NotContains(t, stdout, "+ created")
}

func TestRoles_JSONReport(t *testing.T) {
	h := newHarness(t)

	stdout, _, code := h.run("--format", "json", "roles")
	require.Equal(t, ExitSuccess, code, stdout)

	var resp struct {
		Status string    `json:"status"`
		Data   RunReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "roles", resp.Data.Plan)
	assert.Equal(t, "galaxy.local", resp.Data.Site)
	assert.Equal(t, "test-session-1", resp.Data.SessionID)
	assert.True(t, resp.Data.Committed)
	assert.Equal(t, 37, resp.Data.Created)
}

func TestERPCRM_FailsWithoutCompanies(t *testing.T) {
	h := newHarness(t)
	_, _, code := h.run("roles")
	require.Equal(t, ExitSuccess, code)

	stdout, _, code := h.run("--format", "json", "erp-crm")
	assert.Equal(t, ExitFailure, code)

	resp := decodeResponse(t, stdout)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeRecordsFailed, resp.Error.Code)
}

func TestERPCRM_AfterCompaniesAndRoles(t *testing.T) {
	h := newHarness(t)
	for _, cmd := range []string{"companies", "roles"} {
		_, _, code := h.run(cmd)
		require.Equal(t, ExitSuccess, code, cmd)
	}

	stdout, stderr, code := h.run("erp-crm")
	require.Equal(t, ExitSuccess, code, stdout)
	assert.Contains(t, stderr, "no Verifactu API key provided")
	assert.Contains(t, stdout, "+ created   Webhook{webhook_name=Verifactu Sandbox}")

	stdout, _, code = h.run("--format", "json", "show", "Webhook")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, `"enabled":0`)

	_, _, code = h.run("erp-crm", "--verifactu-api-key", "sk-test")
	require.Equal(t, ExitSuccess, code)

	stdout, _, code = h.run("show", "Webhook")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, `"enabled":1`)
	assert.Contains(t, stdout, `sk-test`)
}

func TestApplyShowAndSessions(t *testing.T) {
	h := newHarness(t)
	planPath := h.writeFile("plan.yaml", `
name: bio
batches:
  - name: companies
    records:
      - kind: Company
        lookup: {company_name: Galaxy Bio}
        desired: {abbr: GB, is_group: 0}
  - name: defaults
    records:
      - kind: Cost Center
        lookup: {company: Galaxy Bio, cost_center_name: Main}
        desired: {is_group: 0}
`)

	stdout, _, code := h.run("apply", planPath)
	require.Equal(t, ExitSuccess, code, stdout)
	assert.Contains(t, stdout, "Session test-session-1 committed: 2 created, 0 updated, 0 failed")

	updated := h.writeFile("plan2.yaml", `
name: bio
batches:
  - name: companies
    records:
      - kind: Company
        lookup: {company_name: Galaxy Bio}
        desired: {abbr: GB2}
`)
	stdout, _, code = h.run("apply", updated)
	require.Equal(t, ExitSuccess, code, stdout)
	assert.Contains(t, stdout, "~ updated   Company{company_name=Galaxy Bio} (#1: abbr)")

	stdout, _, code = h.run("show", "Company", "--where", "abbr=GB2")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, `"abbr":"GB2"`)
	assert.Contains(t, stdout, "1 record(s)")

	stdout, _, code = h.run("show", "Cost Center", "--where", "is_group=1")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "0 record(s)")

	stdout, _, code = h.run("kinds")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Company")
	assert.Contains(t, stdout, "Cost Center")

	stdout, _, code = h.run("--format", "json", "sessions")
	require.Equal(t, ExitSuccess, code)
	var resp struct {
		Data []struct {
			ID      string `json:"id"`
			Status  string `json:"status"`
			Created int    `json:"created"`
			Updated int    `json:"updated"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "test-session-1", resp.Data[0].ID)
	assert.Equal(t, 2, resp.Data[0].Created)
	assert.Equal(t, "committed", resp.Data[1].Status)
	assert.Equal(t, 1, resp.Data[1].Updated)
}

func TestApply_AbortOnFailureRollsBack(t *testing.T) {
	h := newHarness(t)
	planPath := h.writeFile("plan.yaml", `
name: broken
abort_on_failure: true
batches:
  - name: companies
    records:
      - kind: Company
        lookup: {company_name: Galaxy Bio}
        desired: {abbr: GB}
      - kind: Company
        lookup: {company_name: Bad}
        desired: {abbr: not-valid}
`)

	stdout, _, code := h.run("apply", planPath)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "rolled back")
	assert.Contains(t, stdout, "Error [E008]")

	stdout, _, code = h.run("show", "Company")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "0 record(s)")
}

func TestApply_MissingPlan(t *testing.T) {
	h := newHarness(t)

	stdout, _, code := h.run("--format", "json", "apply", filepath.Join(h.dir, "missing.yaml"))
	assert.Equal(t, ExitCommandError, code)
	assert.Equal(t, ErrCodePlanLoad, decodeResponse(t, stdout).Error.Code)
}

func TestValidate(t *testing.T) {
	h := newHarness(t)
	good := h.writeFile("good.yaml", `
name: good
batches:
  - name: roles
    records:
      - kind: Role
        lookup: {role_name: Auditor}
        desired: {desk_access: 1}
`)
	bad := h.writeFile("bad.yaml", `
name: bad
batches:
  - name: roles
    records:
      - kind: Role
        lookup: {role_name: Auditor}
        desired: {desk_access: 2}
      - kind: Spaceship
        lookup: {name: Nostromo}
`)

	stdout, _, code := h.run("validate", good)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "Plan good is valid: 1 record(s) in 1 batch(es)")

	stdout, _, code = h.run("--format", "json", "validate", bad)
	assert.Equal(t, ExitFailure, code)
	resp := decodeResponse(t, stdout)
	assert.Equal(t, ErrCodePlanInvalid, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "2 problem(s)")

	// validate never creates a database
	_, err := os.Stat(filepath.Join(h.dir, "galaxy.local.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestValidate_SchemaDir(t *testing.T) {
	h := newHarness(t)
	schemaDir := filepath.Join(h.dir, "schemas")
	require.NoError(t, os.MkdirAll(schemaDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(schemaDir, "spaceship.cue"), []byte(`
kinds: "Spaceship": {
	key: ["name"]
	schema: {
		name: string
		...
	}
}
`), 0o644))
	planPath := h.writeFile("ship.yaml", `
name: ship
batches:
  - name: fleet
    records:
      - kind: Spaceship
        lookup: {name: Nostromo}
`)

	_, _, code := h.run("validate", planPath)
	assert.Equal(t, ExitFailure, code)

	_, _, code = h.run("--schema-dir", schemaDir, "validate", planPath)
	assert.Equal(t, ExitSuccess, code)
}

func TestExport_RoundTrip(t *testing.T) {
	h := newHarness(t)
	_, _, code := h.run("companies", "--skip-future")
	require.Equal(t, ExitSuccess, code)

	out := filepath.Join(h.dir, "export.yaml")
	stdout, _, code := h.run("export", "-o", out)
	require.Equal(t, ExitSuccess, code, stdout)
	assert.Contains(t, stdout, "Exported 13 record(s)")

	stdout, _, code = h.run("--site", "copy.local", "apply", out)
	require.Equal(t, ExitSuccess, code, stdout)
	assert.Contains(t, stdout, "13 created, 0 updated, 0 failed")

	stdout, _, code = h.run("--site", "copy.local", "show", "Company", "--where", "abbr=GB")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, stdout, "1 record(s)")
}

func TestReadCommands_MissingDatabase(t *testing.T) {
	for _, args := range [][]string{{"show", "Company"}, {"kinds"}, {"sessions"}, {"export"}} {
		t.Run(args[0], func(t *testing.T) {
			h := newHarness(t)
			stdout, _, code := h.run(append([]string{"--format", "json"}, args...)...)
			assert.Equal(t, ExitCommandError, code)
			assert.Equal(t, ErrCodeStore, decodeResponse(t, stdout).Error.Code)
		})
	}
}

func TestSiteOutsideSitesDirRejected(t *testing.T) {
	h := newHarness(t)
	stdout, _, code := h.run("--format", "json", "--site", "../escape", "companies")
	assert.Equal(t, ExitCommandError, code)
	assert.Equal(t, ErrCodeConfig, decodeResponse(t, stdout).Error.Code)

	_, err := os.Stat(filepath.Join(filepath.Dir(h.dir), "escape.db"))
	assert.True(t, os.IsNotExist(err), "no database is created outside the sites dir")
}

func TestShow_InvalidWhere(t *testing.T) {
	h := newHarness(t)
	_, stderr, code := h.run("show", "Company", "--where", "abbr")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "invalid --where")
}

func TestParseWhere(t *testing.T) {
	filters, err := parseWhere([]string{"abbr=GB", "is_group=0", "enabled=true", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, ir.Fields{
		"abbr":     ir.Str("GB"),
		"is_group": ir.Int(0),
		"enabled":  ir.Bool(true),
		"note":     ir.Str("a=b"),
	}, filters)

	_, err = parseWhere([]string{"abbr=GB", "abbr=GS"})
	assert.Error(t, err)
}
