package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/acadamier/backend/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// requiredQuery returns the query parameter name, or a 400 error naming it when it is empty.
func requiredQuery(ctx echo.Context, name string) (string, error) {
	val := core.CleanString(ctx.QueryParam(name))
	if val == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, name+" is required.")
	}
	return val, nil
}
