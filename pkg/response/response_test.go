package response

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, h fiber.Handler) (int, map[string]interface{}) {
	t.Helper()
	app := fiber.New()
	app.Get("/", h)
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	return resp.StatusCode, body
}

func TestAcceptedMergesFields(t *testing.T) {
	code, body := call(t, func(c *fiber.Ctx) error {
		return Accepted(c, Body{"deployment_id": "d-1"})
	})
	assert.Equal(t, fiber.StatusAccepted, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "d-1", body["deployment_id"])
}

func TestErrorCannotBeOverridden(t *testing.T) {
	code, body := call(t, func(c *fiber.Ctx) error {
		return Error(c, fiber.StatusInternalServerError, "Deployment failed", Body{"success": true, "deployment_id": "d-1"})
	})
	assert.Equal(t, fiber.StatusInternalServerError, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Deployment failed", body["error"])
	assert.Equal(t, "d-1", body["deployment_id"])
}

func TestNotFound(t *testing.T) {
	code, body := call(t, func(c *fiber.Ctx) error {
		return NotFound(c, "Deployment not found")
	})
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, map[string]interface{}{"success": false, "error": "Deployment not found"}, body)
}
