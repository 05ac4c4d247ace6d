// Package services – Gateway
//
// This file implements the administrator decision surface. Decisions arrive
// as colon-delimited action tokens:
//
//	approve:<user_id>:<vin>:<number>
//	reject:<user_id>
//	reject:<user_id>:<vin>:<number>   (scoped reject)
//
// HandleDecision never panics and never propagates a failure to the user. It
// returns a DecisionResult whose AdminAck is the short acknowledgment shown to
// the administrator.
package services

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/puk-code-service/internal/i18n"
	"github.com/tbourn/puk-code-service/internal/observability"
)

// Action verbs.
const (
	VerbApprove = "approve"
	VerbReject  = "reject"
)

// Action is a parsed administrator decision.
type Action struct {
	Verb   string
	UserID int64
	VIN    string
	Number string
}

// DecisionResult reports the outcome of one decision.
type DecisionResult struct {
	Action   Action
	Code     string // set on successful approval
	AdminAck string
	Err      error
}

// ParseAction decodes an action token. Any deviation from the known shapes
// yields ErrMalformedAction.
func ParseAction(token string) (Action, error) {
	parts := strings.Split(token, ":")
	if len(parts) < 2 {
		return Action{}, ErrMalformedAction
	}
	uid, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Action{}, ErrMalformedAction
	}
	a := Action{Verb: parts[0], UserID: uid}

	switch {
	case a.Verb == VerbApprove && len(parts) == 4:
	case a.Verb == VerbReject && len(parts) == 2:
		return a, nil
	case a.Verb == VerbReject && len(parts) == 4:
	default:
		return Action{}, ErrMalformedAction
	}
	if parts[2] == "" || parts[3] == "" {
		return Action{}, ErrMalformedAction
	}
	a.VIN, a.Number = parts[2], parts[3]
	return a, nil
}

// ApproveToken encodes an approve action.
func ApproveToken(userID int64, vin, number string) string {
	return VerbApprove + ":" + strconv.FormatInt(userID, 10) + ":" + vin + ":" + number
}

// RejectToken encodes an unscoped reject action.
func RejectToken(userID int64) string {
	return VerbReject + ":" + strconv.FormatInt(userID, 10)
}

// Gateway turns administrator decisions into lifecycle transitions and user
// notifications.
type Gateway struct {
	Requests *RequestService
	Notifier Notifier
	Text     *i18n.Printer
	AdminID  int64
}

// NewGateway constructs a Gateway.
func NewGateway(rs *RequestService, n Notifier, p *i18n.Printer, adminID int64) *Gateway {
	return &Gateway{Requests: rs, Notifier: n, Text: p, AdminID: adminID}
}

// NotifyAdmin sends the new-request notice with Approve and Reject buttons.
func (g *Gateway) NotifyAdmin(ctx context.Context, ack SubmitAck) error {
	text := g.Text.T(i18n.AdminNewRequest,
		i18n.Escape(ack.DisplayName()), ack.UserID, ack.VIN, ack.Number)
	kb := &Keyboard{
		Inline: true,
		Rows: [][]Button{{
			{Text: g.Text.T(i18n.ButtonApprove), Data: ApproveToken(ack.UserID, ack.VIN, ack.Number)},
			{Text: g.Text.T(i18n.ButtonReject), Data: RejectToken(ack.UserID)},
		}},
	}
	return g.Notifier.SendMessage(ctx, g.AdminID, text, kb)
}

// HandleDecision parses token, applies the decision and notifies the
// requesting user exactly once on success.
func (g *Gateway) HandleDecision(ctx context.Context, token string) (res DecisionResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("token", token).Msg("decision panicked")
			res = DecisionResult{Action: res.Action, AdminAck: g.Text.T(i18n.AckFailed), Err: errors.New("decision panicked")}
		}
		observability.DecisionsTotal.WithLabelValues(actionLabel(res.Action.Verb), outcomeOf(res.Err)).Inc()
	}()

	a, err := ParseAction(token)
	if err != nil {
		log.Warn().Str("token", token).Msg("malformed action token")
		return DecisionResult{AdminAck: g.Text.T(i18n.AckMalformed), Err: err}
	}
	res.Action = a
	lg := log.With().Str("action", a.Verb).Int64("user_id", a.UserID).Str("vin", a.VIN).Logger()

	switch a.Verb {
	case VerbApprove:
		issued, err := g.Requests.Approve(ctx, a.UserID, a.VIN, a.Number)
		if err != nil {
			lg.Warn().Err(err).Msg("approve failed")
			res.AdminAck, res.Err = g.ackFor(err), err
			return res
		}
		observability.CodesIssuedTotal.Inc()
		res.Code = issued.Code
		if err := g.Notifier.SendMessage(ctx, a.UserID, g.Text.T(i18n.UserCode, issued.Code), nil); err != nil {
			lg.Error().Err(err).Msg("code issued but user notification failed")
			res.AdminAck, res.Err = g.Text.T(i18n.AckNotifyFailed), err
			return res
		}
		lg.Info().Msg("code issued")
		res.AdminAck = g.Text.T(i18n.AckCodeSent)

	case VerbReject:
		if err := g.Requests.Reject(ctx, a.UserID, a.VIN, a.Number); err != nil {
			lg.Warn().Err(err).Msg("reject failed")
			res.AdminAck, res.Err = g.ackFor(err), err
			return res
		}
		if err := g.Notifier.SendMessage(ctx, a.UserID, g.Text.T(i18n.UserRejected), nil); err != nil {
			lg.Error().Err(err).Msg("request rejected but user notification failed")
			res.AdminAck, res.Err = g.Text.T(i18n.AckNotifyFailed), err
			return res
		}
		lg.Info().Msg("request rejected")
		res.AdminAck = g.Text.T(i18n.AckRejected)
	}
	return res
}

func (g *Gateway) ackFor(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyResolved):
		return g.Text.T(i18n.AckResolved)
	case errors.Is(err, ErrValidation):
		return g.Text.T(i18n.AckMalformed)
	default:
		return g.Text.T(i18n.AckFailed)
	}
}

func actionLabel(verb string) string {
	switch verb {
	case VerbApprove, VerbReject:
		return verb
	}
	return "unknown"
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeOK
	case errors.Is(err, ErrAlreadyResolved):
		return observability.OutcomeResolved
	case errors.Is(err, ErrValidation):
		return observability.OutcomeInvalid
	case errors.Is(err, ErrDuplicateRequest):
		return observability.OutcomeDuplicate
	case errors.Is(err, ErrNotFound):
		return observability.OutcomeNotFound
	}
	return observability.OutcomeError
}
