package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/sqshop/internal/domain/address"
	"github.com/xenking/sqshop/internal/domain/auth"
	"github.com/xenking/sqshop/internal/domain/catalog"
	"github.com/xenking/sqshop/internal/domain/coupon"
	"github.com/xenking/sqshop/internal/domain/order"
	"github.com/xenking/sqshop/internal/domain/payment"
	"github.com/xenking/sqshop/internal/domain/refund"
	"github.com/xenking/sqshop/internal/domain/validate"
)

// badRequestError is returned for bodies that are not valid JSON.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return "malformed request body: " + e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

var (
	notFound = []error{
		catalog.ErrNotFound, catalog.ErrNoImage,
		order.ErrNotFound, order.ErrLineNotFound,
		coupon.ErrNotFound, refund.ErrNotFound,
		address.ErrNotFound, payment.ErrNotFound,
	}
	conflict = []error{
		catalog.ErrSlugTaken, catalog.ErrInUse,
		coupon.ErrCodeTaken,
		order.ErrCartClosed, order.ErrAlreadyPaid,
	}
	unprocessable = []error{
		order.ErrEmptyCart, order.ErrItemUnavailable, order.ErrRefundEvent,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// respondError maps a service error to its HTTP status. Unknown errors are
// logged and hidden behind a 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		valErr     *validate.Error
		decodeErr  *catalog.DecodeError
		transErr   *order.InvalidTransitionError
		badRequest *badRequestError
	)
	switch {
	case errors.As(err, &badRequest):
		writeError(w, http.StatusBadRequest, "", badRequest.Error())
	case errors.As(err, &valErr):
		writeError(w, http.StatusUnprocessableEntity, valErr.Field, valErr.Message)
	case errors.As(err, &decodeErr):
		writeError(w, http.StatusUnprocessableEntity, "image", decodeErr.Error())
	case errors.As(err, &transErr):
		writeError(w, http.StatusUnprocessableEntity, "event", transErr.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "", "missing or invalid API key")
	case errors.Is(err, errForbidden):
		writeError(w, http.StatusForbidden, "", "forbidden")
	case isAny(err, notFound):
		writeError(w, http.StatusNotFound, "", err.Error())
	case isAny(err, conflict):
		writeError(w, http.StatusConflict, "", err.Error())
	case isAny(err, unprocessable):
		writeError(w, http.StatusUnprocessableEntity, "", err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "", "internal error")
	}
}

// writeError renders {"code","message"} plus "field" for validation failures.
func writeError(w http.ResponseWriter, code int, field, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(code)
	if field != "" {
		e.FieldStart("field")
		e.Str(field)
	}
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
