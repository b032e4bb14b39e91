package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mattsolo1/grove-mlconsole/pkg/mutation"
	"github.com/mattsolo1/grove-mlconsole/pkg/permission"
	"github.com/mattsolo1/grove-mlconsole/pkg/selection"
)

type artifactsResponse struct {
	mutation.ArtifactSnapshot
	Summary     selection.Summary `json:"summary"`
	Description string            `json:"description"`
}

func artifactsBody(v *mutation.ArtifactView) artifactsResponse {
	sum := v.Summary()
	return artifactsResponse{
		ArtifactSnapshot: v.Snapshot(),
		Summary:          sum,
		Description:      sum.Describe(),
	}
}

func (s *Server) openArtifacts(c echo.Context) (*mutation.ArtifactView, error) {
	return s.svc.OpenArtifacts(c.Request().Context(), s.user(c), c.Param("run"))
}

// selectableArtifacts opens the caller's view after checking that the caller may change
// what gets deleted.
func (s *Server) selectableArtifacts(c echo.Context) (*mutation.ArtifactView, error) {
	ctx, user, run := c.Request().Context(), s.user(c), c.Param("run")
	if err := s.svc.RequireEdit(ctx, user, permission.RunResource(run)); err != nil {
		return nil, err
	}
	return s.svc.OpenArtifacts(ctx, user, run)
}

func (s *Server) getArtifacts(c echo.Context) error {
	v, err := s.openArtifacts(c)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, artifactsBody(v))
}

func (s *Server) refreshArtifacts(c echo.Context) error {
	v, err := s.svc.RefreshArtifacts(c.Request().Context(), s.user(c), c.Param("run"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, artifactsBody(v))
}

func (s *Server) expandArtifact(c echo.Context) error {
	var req struct {
		ID string `json:"id"`
	}
	if err := c.Bind(&req); err != nil || req.ID == "" {
		return badRequest(c, "id is required")
	}
	v, err := s.openArtifacts(c)
	if err != nil {
		return s.fail(c, err)
	}
	v.ToggleExpand(req.ID)
	return c.JSON(http.StatusOK, artifactsBody(v))
}

func (s *Server) selectArtifact(c echo.Context) error {
	var req struct {
		ID       string `json:"id"`
		Selected *bool  `json:"selected"`
		Cascade  bool   `json:"cascade"`
	}
	if err := c.Bind(&req); err != nil || req.ID == "" {
		return badRequest(c, "id is required")
	}
	selected := true
	if req.Selected != nil {
		selected = *req.Selected
	}

	v, err := s.selectableArtifacts(c)
	if err != nil {
		return s.fail(c, err)
	}
	if err := v.SetSelected(req.ID, selected, req.Cascade); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, artifactsBody(v))
}

func (s *Server) selectAllArtifacts(c echo.Context) error {
	var req struct {
		Selected bool `json:"selected"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	v, err := s.selectableArtifacts(c)
	if err != nil {
		return s.fail(c, err)
	}
	if err := v.SelectAll(req.Selected); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, artifactsBody(v))
}

func (s *Server) deleteSelectedArtifacts(c echo.Context) error {
	user, run := s.user(c), c.Param("run")
	res, err := s.svc.DeleteSelectedArtifacts(c.Request().Context(), user, run)
	if err != nil {
		return s.fail(c, err)
	}
	v, err := s.svc.ArtifactView(user, run)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]any{"result": res})
	}
	return c.JSON(http.StatusOK, map[string]any{"result": res, "artifacts": artifactsBody(v)})
}

func (s *Server) closeArtifacts(c echo.Context) error {
	s.svc.CloseArtifacts(s.user(c), c.Param("run"))
	return c.NoContent(http.StatusNoContent)
}
