package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/flightdeck-social/flightdeck/autopilot"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
)

// Server is the administrative HTTP surface; every route maps 1:1 to an
// engine operation.
type Server struct {
	engine    *autopilot.Engine
	logger    *slog.Logger
	echo      *echo.Echo
	jwtSecret []byte
}

type Config struct {
	JWTSecret []byte
}

func NewServer(engine *autopilot.Engine, logger *slog.Logger, config Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))

	srv := &Server{
		engine:    engine,
		logger:    logger.With("component", "admin_api"),
		echo:      e,
		jwtSecret: config.JWTSecret,
	}

	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		code := http.StatusInternalServerError
		msg := "internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		} else {
			srv.logger.Warn("handler error", "path", ctx.Path(), "err", err)
		}
		if !ctx.Response().Committed {
			ctx.JSON(code, map[string]any{"error": msg})
		}
	}

	e.GET("/_health", srv.handleHealthCheck)

	group := e.Group("/autopilot")
	if len(srv.jwtSecret) > 0 {
		group.Use(srv.checkAdminAuth)
	} else {
		logger.Warn("admin JWT secret not set, admin API is unauthenticated")
	}

	group.POST("/start", srv.handleStart)
	group.POST("/stop", srv.handleStop)
	group.GET("/status", srv.handleStatus)
	group.POST("/settings", srv.handleUpdateSettings)
	group.POST("/queue/add", srv.handleQueueAdd)
	group.POST("/queue/remove", srv.handleQueueRemove)
	group.GET("/queue/list", srv.handleQueueList)
	group.GET("/sessions", srv.handleListSessions)
	group.POST("/emergencyStop", srv.handleEmergencyStop)

	return srv
}

func (s *Server) RunAPI(listen string) error {
	s.logger.Info("starting admin API", "bind", listen)
	err := s.echo.Start(listen)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) checkAdminAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		hdr := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(hdr, "Bearer ")
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}
		_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.jwtSecret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid bearer token")
		}
		return next(c)
	}
}

// engineError maps engine sentinel errors to HTTP status codes.
func engineError(err error) error {
	switch {
	case errors.Is(err, autopilot.ErrAlreadyRunning):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, autopilot.ErrNotRunning):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, autopilot.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, autopilot.ErrUnhealthyAccount):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, autopilot.ErrInvalidAction):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func (s *Server) handleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type startRequest struct {
	UserID   string             `json:"userId"`
	Settings autopilot.Settings `json:"settings"`
}

func (s *Server) handleStart(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}
	res, err := s.engine.Start(c.Request().Context(), req.UserID, req.Settings)
	if err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type userRequest struct {
	UserID string `json:"userId"`
}

func (s *Server) handleStop(c echo.Context) error {
	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := s.engine.Stop(c.Request().Context(), req.UserID); err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "autopilot stopped"})
}

func (s *Server) handleStatus(c echo.Context) error {
	userID := c.QueryParam("userId")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}
	info, err := s.engine.Status(c.Request().Context(), userID)
	if err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusOK, info)
}

func (s *Server) handleUpdateSettings(c echo.Context) error {
	var req startRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}
	if err := s.engine.UpdateSettings(c.Request().Context(), req.UserID, req.Settings); err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "settings updated"})
}

type queueAddRequest struct {
	UserID string           `json:"userId"`
	Action autopilot.Action `json:"action"`
}

func (s *Server) handleQueueAdd(c echo.Context) error {
	var req queueAddRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}
	act, err := s.engine.Enqueue(c.Request().Context(), req.UserID, &req.Action)
	if err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusOK, act)
}

type queueRemoveRequest struct {
	UserID   string `json:"userId"`
	ActionID uint64 `json:"actionId"`
}

func (s *Server) handleQueueRemove(c echo.Context) error {
	var req queueRemoveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	removed, err := s.engine.RemoveAction(c.Request().Context(), req.UserID, req.ActionID)
	if err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"removed": removed})
}

func (s *Server) handleQueueList(c echo.Context) error {
	userID := c.QueryParam("userId")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "userId is required")
	}
	actions, err := s.engine.ListActions(c.Request().Context(), userID)
	if err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"actions": actions})
}

func (s *Server) handleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"sessions": s.engine.ListSessions(c.Request().Context())})
}

func (s *Server) handleEmergencyStop(c echo.Context) error {
	count := s.engine.EmergencyStopAll(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]int{"count": count})
}
