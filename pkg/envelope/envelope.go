// Package envelope renders every API response as {status, message, data}.
package envelope

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Body is the JSON shape shared by success and error responses. Code is set
// only on errors.
type Body struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data"`
}

func JSON(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Body{Status: status, Message: message, Data: data})
}

func OK(c echo.Context, message string, data interface{}) error {
	return JSON(c, http.StatusOK, message, data)
}

func Created(c echo.Context, message string, data interface{}) error {
	return JSON(c, http.StatusCreated, message, data)
}

// Error writes an error body. data is always null.
func Error(c echo.Context, status int, code, message string) error {
	return c.JSON(status, Body{Status: status, Message: message, Code: code})
}
