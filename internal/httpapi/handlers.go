package httpapi

import (
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"voice-forms-go/internal/logger"
	"voice-forms-go/internal/processor"
)

type Handler struct {
	svc *processor.Service
	log *logger.Logger
}

func (h *Handler) Register(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.SendString("ok") })

	app.Post("/sessions", h.CreateSession)
	app.Get("/sessions/:id/answers", h.SessionAnswers)
	app.Post("/answers", h.SubmitAnswer)

	forms := app.Group("/forms/:id")
	forms.Get("/analytics", h.FormAnalytics)
	forms.Get("/analytics/summary", h.FormSummary)
	forms.Delete("/analytics", h.ResetAnalytics)
}

type createSessionRequest struct {
	FormID  int64 `json:"form_id"`
	OwnerID int64 `json:"owner_id"`
}

func (h *Handler) CreateSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	sess, err := h.svc.StartSession(c.UserContext(), req.FormID, req.OwnerID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(sess)
}

// SubmitAnswer accepts multipart/form-data with session_id, question_id,
// question_number, optional response_text, response_time, is_final_answer
// and an optional file part holding the recording. Url-encoded bodies work
// for text-only answers.
func (h *Handler) SubmitAnswer(c *fiber.Ctx) error {
	// FormValue aliases the request buffer; the text outlives this handler.
	req := processor.SubmitRequest{ResponseText: utils.CopyString(c.FormValue("response_text"))}

	var err error
	if req.SessionID, err = formInt(c, "session_id", true); err != nil {
		return err
	}
	if req.QuestionID, err = formInt(c, "question_id", false); err != nil {
		return err
	}
	qn, err := formInt(c, "question_number", false)
	if err != nil {
		return err
	}
	req.QuestionNumber = int(qn)

	if v := c.FormValue("response_time"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "response_time must be a number")
		}
		req.ResponseTime = &f
	}
	if v := c.FormValue("is_final_answer"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "is_final_answer must be a boolean")
		}
		req.IsFinalAnswer = b
	}

	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable file part")
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable file part")
		}
		req.Audio = data
		req.AudioName = fh.Filename
		req.AudioContentType = fh.Header.Get("Content-Type")
	}

	a, err := h.svc.SubmitAnswer(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

func (h *Handler) SessionAnswers(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid session id")
	}
	views, err := h.svc.SessionAnswers(c.UserContext(), int64(id))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"session_id": id, "answers": views})
}

func (h *Handler) FormAnalytics(c *fiber.Ctx) error {
	id, err := formID(c)
	if err != nil {
		return err
	}
	fa, err := h.svc.FormAnalytics(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fa)
}

func (h *Handler) FormSummary(c *fiber.Ctx) error {
	id, err := formID(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.FormSummary(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(sum)
}

func (h *Handler) ResetAnalytics(c *fiber.Ctx) error {
	id, err := formID(c)
	if err != nil {
		return err
	}
	if err := h.svc.ResetFormAnalytics(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func formID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid form id")
	}
	return int64(id), nil
}

func formInt(c *fiber.Ctx, key string, required bool) (int64, error) {
	v := strings.TrimSpace(c.FormValue(key))
	if v == "" {
		if required {
			return 0, fiber.NewError(fiber.StatusBadRequest, key+" is required")
		}
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, key+" must be an integer")
	}
	return n, nil
}
