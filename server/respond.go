package server

import (
	"net/http"
	"strconv"

	"github.com/existflow/instafeed/internal/logger"
	"github.com/labstack/echo/v4"
)

// ok writes {success:true, data}
func ok(c echo.Context, status int, data any) error {
	body := map[string]any{"success": true}
	if data != nil {
		body["data"] = data
	}
	return c.JSON(status, body)
}

// fail writes {success:false, error}
func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]any{"success": false, "error": msg})
}

func (s *Server) internal(c echo.Context, op string, err error) error {
	s.log.Error("Request failed", logger.F("op", op), logger.F("request_id", c.Response().Header().Get(echo.HeaderXRequestID)), logger.Err(err))
	return fail(c, http.StatusInternalServerError, "internal error")
}

func idParam(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
