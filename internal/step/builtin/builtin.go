// Package builtin provides the step capabilities shipped with agenttask.
package builtin

import (
	"log/slog"
	"net/http"

	"github.com/Little-Star888/agenttask/internal/step"
)

// Step type tags.
const (
	TypeSet     = "set"
	TypeExpr    = "expr"
	TypeHTTP    = "http"
	TypeJSONGet = "json.get"
	TypeJSONSet = "json.set"
	TypeDelay   = "delay"
	TypeFail    = "fail"
)

// Register binds every built-in capability to its type tag.
func Register(reg *step.Registry, logger *slog.Logger) {
	reg.Register(TypeSet, &Set{})
	reg.Register(TypeExpr, &Expr{})
	reg.Register(TypeHTTP, NewHTTP(http.DefaultTransport, logger))
	reg.Register(TypeJSONGet, &JSONGet{})
	reg.Register(TypeJSONSet, &JSONSet{})
	reg.Register(TypeDelay, &Delay{})
	reg.Register(TypeFail, &Fail{})
}
