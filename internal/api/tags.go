package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mattsolo1/grove-mlconsole/pkg/mutation"
	"github.com/mattsolo1/grove-mlconsole/pkg/permission"
	"github.com/mattsolo1/grove-mlconsole/pkg/selection"
)

var errRowNotFound = errors.New("row index out of range")

func (s *Server) openTags(c echo.Context) (*mutation.TagView, error) {
	return s.svc.OpenTags(c.Request().Context(), s.user(c), c.Param("exp"))
}

// editableTags opens the caller's view after checking that the caller may edit the tags.
func (s *Server) editableTags(c echo.Context) (*mutation.TagView, error) {
	ctx, user, exp := c.Request().Context(), s.user(c), c.Param("exp")
	if err := s.svc.RequireEdit(ctx, user, permission.ExperimentResource(exp)); err != nil {
		return nil, err
	}
	return s.svc.OpenTags(ctx, user, exp)
}

// editTags runs fn on the open edit buffer and replies with the updated snapshot.
func (s *Server) editTags(c echo.Context, fn func(rows *selection.Rows) error) error {
	v, err := s.editableTags(c)
	if err != nil {
		return s.fail(c, err)
	}
	if err := v.Edit(fn); err != nil {
		if errors.Is(err, errRowNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, v.Snapshot())
}

func rowIndex(c echo.Context) (int, bool) {
	i, err := strconv.Atoi(c.Param("index"))
	return i, err == nil
}

func (s *Server) getTags(c echo.Context) error {
	v, err := s.openTags(c)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, v.Snapshot())
}

func (s *Server) beginEdit(c echo.Context) error {
	v, err := s.editableTags(c)
	if err != nil {
		return s.fail(c, err)
	}
	if err := v.BeginEdit(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, v.Snapshot())
}

func (s *Server) cancelEdit(c echo.Context) error {
	v, err := s.openTags(c)
	if err != nil {
		return s.fail(c, err)
	}
	if err := v.CancelEdit(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, v.Snapshot())
}

func (s *Server) insertRow(c echo.Context) error {
	user := s.user(c)
	return s.editTags(c, func(rows *selection.Rows) error {
		rows.InsertRow(user)
		return nil
	})
}

func (s *Server) updateRow(c echo.Context) error {
	index, ok := rowIndex(c)
	if !ok {
		return badRequest(c, "index must be an integer")
	}
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return s.editTags(c, func(rows *selection.Rows) error {
		if !rows.UpdateRow(index, req.Key, req.Value) {
			return errRowNotFound
		}
		return nil
	})
}

func (s *Server) deleteRow(c echo.Context) error {
	index, ok := rowIndex(c)
	if !ok {
		return badRequest(c, "index must be an integer")
	}
	return s.editTags(c, func(rows *selection.Rows) error {
		if !rows.DeleteRow(index) {
			return errRowNotFound
		}
		return nil
	})
}

func (s *Server) selectRow(c echo.Context) error {
	var req struct {
		Index    *int  `json:"index"`
		Selected *bool `json:"selected"`
	}
	if err := c.Bind(&req); err != nil || req.Index == nil {
		return badRequest(c, "index is required")
	}
	selected := true
	if req.Selected != nil {
		selected = *req.Selected
	}
	return s.editTags(c, func(rows *selection.Rows) error {
		rows.ToggleRow(*req.Index, selected)
		return nil
	})
}

func (s *Server) selectAllRows(c echo.Context) error {
	var req struct {
		Selected bool `json:"selected"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	return s.editTags(c, func(rows *selection.Rows) error {
		rows.SelectAll(req.Selected)
		return nil
	})
}

func (s *Server) deleteSelectedRows(c echo.Context) error {
	return s.editTags(c, func(rows *selection.Rows) error {
		if rows.DeleteSelected() == 0 {
			return mutation.ErrNothingSelected
		}
		return nil
	})
}

func (s *Server) applyTags(c echo.Context) error {
	exp := c.Param("exp")
	res, err := s.svc.ApplyTagEdits(c.Request().Context(), s.user(c), exp)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"result": res})
}
