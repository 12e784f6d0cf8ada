// Package httpapi exposes answer intake and form analytics over HTTP.
package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"voice-forms-go/internal/aggregator"
	"voice-forms-go/internal/logger"
	"voice-forms-go/internal/processor"
	"voice-forms-go/internal/store"
)

// maxUploadBytes bounds a single multipart answer including its recording.
const maxUploadBytes = 25 * 1024 * 1024

func NewApp(svc *processor.Service, log *logger.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:    maxUploadBytes,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: errorHandler(log),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		MaxAge:       300,
	}))
	app.Use(requestLogger(log))

	h := &Handler{svc: svc, log: log}
	h.Register(app)
	return app
}

func requestLogger(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		entry := log.WithRequest(c).
			WithField("status", c.Response().StatusCode()).
			WithField("duration_ms", time.Since(start).Milliseconds())
		if err != nil {
			entry = entry.WithField("error", err.Error())
		}
		entry.Info("request handled")
		return err
	}
}

// errorHandler maps domain errors onto status codes.
func errorHandler(log *logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			code = fe.Code
		case errors.Is(err, store.ErrNotFound):
			code = fiber.StatusNotFound
		case errors.Is(err, store.ErrSessionCompleted):
			code = fiber.StatusConflict
		case errors.Is(err, processor.ErrInvalidSubmission):
			code = fiber.StatusBadRequest
		case errors.Is(err, aggregator.ErrLockTimeout):
			code = fiber.StatusServiceUnavailable
		}
		if code >= 500 {
			log.WithError(err).WithField("path", c.Path()).Error("request failed")
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}
}
