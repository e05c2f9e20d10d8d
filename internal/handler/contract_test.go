package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/projtrack-api/internal/dto"
	"github.com/noah-isme/projtrack-api/internal/models"
)

func compileContract(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "contracts", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)
	return schema
}

func validateContract(t *testing.T, schema *jsonschema.Schema, resp *http.Response) {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload), string(body))
}

func TestProjectContract(t *testing.T) {
	h := newHarness(t)
	schema := compileContract(t, "project.schema.json")

	resp := h.do(h.student, http.MethodPost, "/api/v1/projects", dto.ProjectCreateRequest{Title: "Contract project", Description: "desc"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	validateContract(t, schema, resp)

	var project models.Project
	require.NoError(t, h.db.First(&project).Error)
	resp = h.do(h.faculty, http.MethodGet, fmt.Sprintf("/api/v1/projects/%d", project.ID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	validateContract(t, schema, resp)
}

func TestNotificationListContract(t *testing.T) {
	h := newHarness(t)
	schema := compileContract(t, "notification_list.schema.json")

	resp := h.do(h.student, http.MethodPost, "/api/v1/teams", dto.TeamCreateRequest{Name: "Contracts"})
	team := decodeEnvelope[dto.TeamResponse](t, resp).Data
	resp = h.do(h.student, http.MethodPost, fmt.Sprintf("/api/v1/teams/%d/invites", team.ID), dto.TeamInviteRequest{Email: h.mate.Email})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp = h.do(h.mate, http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	validateContract(t, schema, resp)
}

func TestErrorContract(t *testing.T) {
	h := newHarness(t)
	schema := compileContract(t, "error.schema.json")

	resp := h.do(h.student, http.MethodPost, "/api/v1/projects", dto.ProjectCreateRequest{Title: ""})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	validateContract(t, schema, resp)

	resp = h.do(models.Profile{}, http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	validateContract(t, schema, resp)
}
