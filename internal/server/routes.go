package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/berfenger/dinrelay2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// OutletView is the JSON form of an outlet.
type OutletView struct {
	Index    int    `json:"index" yaml:"index"`
	Label    string `json:"label" yaml:"label"`
	Name     string `json:"name" yaml:"name"`
	UniqueId string `json:"unique_id" yaml:"unique_id"`
	State    string `json:"state" yaml:"state"`
}

type errorView struct {
	Error string `json:"error"`
}

func NewOutletView(o domain.OutletInfo) OutletView {
	return OutletView{
		Index:    o.Index,
		Label:    o.Label,
		Name:     o.Name,
		UniqueId: o.UniqueId,
		State:    o.State.String(),
	}
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/outlets", s.OutletsHandler)
	e.POST("/outlets/:index/:command", s.OutletCommandHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

// OutletsHandler lists every outlet. When the unit cannot be reached the last
// known states are listed.
func (s *Server) OutletsHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.RefreshOutletsRequest{}, s.actorTimeout).Result()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, errorView{Error: err.Error()})
	}
	response, ok := res.(domain.RefreshOutletsResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorView{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		c.Response().Header().Set("X-Relay-Error", response.GetResponseError().Error())
	}
	views := make([]OutletView, 0, len(response.Outlets))
	for _, o := range response.Outlets {
		views = append(views, NewOutletView(o))
	}
	return c.JSON(http.StatusOK, views)
}

func (s *Server) OutletCommandHandler(c echo.Context) error {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorView{Error: "unknown outlet " + c.Param("index")})
	}
	command, err := domain.ParseOutletCommand(c.Param("command"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorView{Error: err.Error()})
	}

	res, err := s.rootContext.RequestFuture(s.masterActor, domain.SetOutletRequest{Index: index, Command: command}, s.commandExpiry).Result()
	if err != nil {
		return c.JSON(http.StatusGatewayTimeout, errorView{Error: err.Error()})
	}
	response, ok := res.(domain.SetOutletResponse)
	if !ok {
		return c.JSON(http.StatusInternalServerError, errorView{Error: "unexpected response"})
	}
	if response.HasResponseError() {
		err := response.GetResponseError()
		if errors.Is(err, domain.ErrInvalidOutlet) {
			return c.JSON(http.StatusNotFound, errorView{Error: err.Error()})
		}
		return c.JSON(http.StatusBadGateway, errorView{Error: err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}
