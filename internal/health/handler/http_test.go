package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthBody struct {
	Data struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	} `json:"data"`
}

func get(t *testing.T, h *Handler) (int, healthBody) {
	t.Helper()
	app := fiber.New()
	h.Register(app)
	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	var body healthBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealth_AllUp(t *testing.T) {
	ok := func(context.Context) error { return nil }
	status, body := get(t, NewHandler(nil, Check{"database", ok}, Check{"policy", ok}))
	assert.Equal(t, 200, status)
	assert.Equal(t, "up", body.Data.Status)
	assert.Equal(t, map[string]string{"database": "up", "policy": "up"}, body.Data.Checks)
}

func TestHealth_NoChecks(t *testing.T) {
	status, body := get(t, NewHandler(nil))
	assert.Equal(t, 200, status)
	assert.Equal(t, "up", body.Data.Status)
}

func TestHealth_OneDown(t *testing.T) {
	status, body := get(t, NewHandler(nil,
		Check{"database", func(context.Context) error { return errors.New("connection refused") }},
		Check{"policy", func(context.Context) error { return nil }},
	))
	assert.Equal(t, 503, status)
	assert.Equal(t, "down", body.Data.Status)
	assert.Equal(t, "down", body.Data.Checks["database"])
	assert.Equal(t, "up", body.Data.Checks["policy"])
}
