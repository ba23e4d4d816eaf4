package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/educreche/notify-gateway/internal/model"
	"github.com/educreche/notify-gateway/internal/retry"
	"github.com/educreche/notify-gateway/internal/util"
	echo "github.com/labstack/echo/v4"
)

// inviteLog is the message-log slice the invite handler needs; satisfied by
// *messagelog.Service.
type inviteLog interface {
	retry.Log
	Create(ctx context.Context, channel model.Channel, recipient, subject, body, template string) (*model.MessageRecord, error)
}

type resendInviteReq struct {
	InviteType      string `json:"inviteType"` // "parent" | "employee"
	InviteCode      string `json:"inviteCode"`
	Phone           string `json:"phone"`
	ParentName      string `json:"parentName"`
	EmployeeName    string `json:"employeeName"`
	Role            string `json:"role"`
	CouponCode      string `json:"couponCode"`
	IsPreEnrollment bool   `json:"isPreEnrollment"`
}

// resendInviteHandler re-sends an onboarding invite over WhatsApp. The first
// attempt happens inline; a transient failure leaves an error record behind
// for the retry sweep.
func resendInviteHandler(svc inviteLog, wa retry.Channel) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := util.New()

		if !wa.Configured() {
			return c.JSON(http.StatusInternalServerError, map[string]any{"error": "whatsapp provider not configured", "requestId": requestID})
		}

		var req resendInviteReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": "bad request", "requestId": requestID})
		}

		req.Phone = util.NormalizePhone(req.Phone)
		req.InviteCode = strings.TrimSpace(req.InviteCode)
		if req.Phone == "" || req.InviteCode == "" {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": "phone and inviteCode are required", "requestId": requestID})
		}

		text, template, err := inviteMessage(req)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error(), "requestId": requestID})
		}

		rec, err := svc.Create(c.Request().Context(), model.ChannelWhatsApp, req.Phone, "", text, template)
		if err != nil {
			c.Logger().Errorf("create invite record failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]any{"error": "db error", "requestId": requestID})
		}

		status, err := retry.Deliver(c.Request().Context(), svc, wa, rec)
		if err != nil {
			c.Logger().Errorf("invite delivery bookkeeping failed: %v", err)

			return c.JSON(http.StatusInternalServerError, map[string]any{"error": "db error", "requestId": requestID})
		}

		switch status {
		case model.StatusSent:
			return c.JSON(http.StatusOK, map[string]any{
				"success":   true,
				"message":   "invite sent",
				"requestId": requestID,
			})
		case model.StatusFailedPermanent:
			return c.JSON(http.StatusUnprocessableEntity, map[string]any{
				"error":     "destination could not be resolved",
				"requestId": requestID,
			})
		default:
			// transient failure; the sweep owns the record now
			return c.JSON(http.StatusAccepted, map[string]any{
				"success":   true,
				"message":   "invite queued for retry",
				"requestId": requestID,
			})
		}
	}
}

func inviteMessage(req resendInviteReq) (text, template string, err error) {
	switch strings.ToLower(strings.TrimSpace(req.InviteType)) {
	case "parent":
		name := req.ParentName
		if name == "" {
			name = "responsável"
		}
		text = fmt.Sprintf("Olá %s! Seu convite de matrícula está pronto. Use o código %s para concluir o cadastro.", name, req.InviteCode)
		if req.CouponCode != "" {
			text += fmt.Sprintf(" Cupom de desconto: %s.", req.CouponCode)
		}
		template = "invite_parent"
		if req.IsPreEnrollment {
			template = "invite_pre_enrollment"
		}
	case "employee":
		name := req.EmployeeName
		if name == "" {
			name = "colaborador"
		}
		role := req.Role
		if role == "" {
			role = "equipe"
		}
		text = fmt.Sprintf("Olá %s! Você foi convidado para a função %s. Use o código %s para ativar seu acesso.", name, role, req.InviteCode)
		template = "invite_employee"
	default:
		return "", "", fmt.Errorf("unknown inviteType %q", req.InviteType)
	}
	return text, template, nil
}
