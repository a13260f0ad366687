package deployments_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deployra/launcher/internal/handlers/deployments"
	"github.com/deployra/launcher/internal/metrics"
	"github.com/deployra/launcher/internal/orchestrator/orchestratortest"
	"github.com/deployra/launcher/internal/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T) (*fiber.App, *orchestratortest.Env) {
	t.Helper()
	env := orchestratortest.NewEnv(t, nil)
	app := routes.NewApp(routes.Options{
		Metrics:     metrics.New(),
		Deployments: deployments.New(env.Orchestrator, nil),
	})
	return app, env
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return resp.StatusCode, out
}

func TestDeployGoesLive(t *testing.T) {
	app, _ := newApp(t)

	code, body := do(t, app, http.MethodPost, "/deploy", `{"github_url":"https://github.com/acme/widget"}`)
	require.Equal(t, fiber.StatusAccepted, code, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "live", body["status"])
	assert.Equal(t, "http://203.0.113.10", body["url"])
	assert.NotEmpty(t, body["instance_id"])
	assert.Regexp(t, `^widget-[0-9a-f]{6}$`, body["subdomain"])

	id := body["deployment_id"].(string)
	code, body = do(t, app, http.MethodGet, "/deployments/"+id, "")
	require.Equal(t, fiber.StatusOK, code)
	d := body["deployment"].(map[string]interface{})
	assert.Equal(t, "live", d["status"])
	assert.NotEmpty(t, d["result_url"])
	assert.NotEmpty(t, d["compute_instance_id"])
	assert.Equal(t, "https://github.com/acme/widget", d["source_url"])
}

func TestDeployBuildFailure(t *testing.T) {
	app, env := newApp(t)
	env.Builder.Status = "FAILED"
	env.Builder.Message = "COMMAND_EXECUTION_ERROR"

	code, body := do(t, app, http.MethodPost, "/deploy", `{"github_url":"https://github.com/acme/widget"}`)
	require.Equal(t, fiber.StatusInternalServerError, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "build_failed", body["status"])
	assert.Contains(t, body["error"], "COMMAND_EXECUTION_ERROR")

	code, body = do(t, app, http.MethodGet, "/deployments/"+body["deployment_id"].(string), "")
	require.Equal(t, fiber.StatusOK, code)
	d := body["deployment"].(map[string]interface{})
	assert.Equal(t, "build_failed", d["status"])
	assert.NotEmpty(t, d["error"])
	assert.Zero(t, env.Invoker.CallCount())
}

func TestDeployRejectsMalformedURL(t *testing.T) {
	app, env := newApp(t)

	code, body := do(t, app, http.MethodPost, "/deploy", `{"github_url":"ftp://github.com/a/b"}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Invalid GitHub URL format", body["error"])

	code, body = do(t, app, http.MethodPost, "/deploy", `{}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.Equal(t, "Please provide a GitHub URL", body["error"])

	code, body = do(t, app, http.MethodPost, "/deploy", `{not json`)
	assert.Equal(t, fiber.StatusBadRequest, code)

	_, body = do(t, app, http.MethodGet, "/deployments", "")
	assert.Equal(t, float64(0), body["count"])
	assert.Zero(t, env.Compute.CreateCalls())
	assert.Empty(t, env.Store.Keys())
}

func TestDeleteLiveDeployment(t *testing.T) {
	app, env := newApp(t)

	_, body := do(t, app, http.MethodPost, "/deploy", `{"github_url":"https://github.com/acme/widget"}`)
	id := body["deployment_id"].(string)
	instanceID := body["instance_id"].(string)

	code, body := do(t, app, http.MethodDelete, "/deployments/"+id, "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []string{instanceID}, env.Compute.TerminatedIDs())

	code, body = do(t, app, http.MethodGet, "/deployments/"+id, "")
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, map[string]interface{}{"success": false, "error": "Deployment not found"}, body)

	code, _ = do(t, app, http.MethodDelete, "/deployments/"+id, "")
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestListDeployments(t *testing.T) {
	app, _ := newApp(t)

	do(t, app, http.MethodPost, "/deploy", `{"github_url":"https://github.com/acme/one"}`)
	do(t, app, http.MethodPost, "/deploy", `{"github_url":"https://github.com/acme/two/"}`)

	code, body := do(t, app, http.MethodGet, "/deployments", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, float64(2), body["count"])

	list := body["deployments"].([]interface{})
	first := list[0].(map[string]interface{})
	second := list[1].(map[string]interface{})
	assert.Equal(t, "https://github.com/acme/one", first["source_url"])
	assert.Equal(t, "https://github.com/acme/two/", second["source_url"])
}

func TestHealth(t *testing.T) {
	app, _ := newApp(t)
	code, body := do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}
