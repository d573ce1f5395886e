// Package http provides HTTP server and handler implementations.
//
// This file implements request decoding and validation. Bodies are JSON,
// checked with struct tags, then converted into domain values.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"usaha/internal/core"
	"usaha/internal/report"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// errBadRequest marks malformed bodies; validation failures are wrapped
// separately so handlers can answer 400 or 422.
var errBadRequest = errors.New("malformed request body")

type validationError struct {
	fields validator.ValidationErrors
}

func (e *validationError) Error() string {
	parts := make([]string, 0, len(e.fields))
	for _, fe := range e.fields {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

// newValidator returns a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeBody reads one JSON value into dst and validates it.
func decodeBody(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) error {
	return decode(w, r, v, dst, false)
}

// decodeOptionalBody is decodeBody for endpoints whose body may be empty.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) error {
	return decode(w, r, v, dst, true)
}

func decode(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any, optional bool) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		if optional {
			return nil
		}
		return fmt.Errorf("%w: empty body", errBadRequest)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := v.Struct(dst); err != nil {
		var fields validator.ValidationErrors
		if errors.As(err, &fields) {
			return &validationError{fields: fields}
		}
		return err
	}
	return nil
}

// writeDecodeError answers 400 for malformed bodies and 422 for invalid ones.
func writeDecodeError(w http.ResponseWriter, err error) {
	var ve *validationError
	if errors.As(err, &ve) {
		UnprocessableEntityError(ve.Error()).Write(w)
		return
	}
	BadRequestError(err.Error()).Write(w)
}

type businessRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// jobRequest is the editable part of a job. Completion state and calendar
// ids are never taken from clients.
type jobRequest struct {
	Title             string      `json:"title" validate:"required,max=200"`
	Description       string      `json:"description" validate:"max=2000"`
	Notes             string      `json:"notes" validate:"max=5000"`
	Category          string      `json:"category" validate:"omitempty,oneof=work task"`
	Date              string      `json:"date" validate:"required,datetime=2006-01-02"`
	Deadline          string      `json:"deadline" validate:"max=32"`
	GrossIncome       core.Amount `json:"grossIncome"`
	Expenses          core.Amount `json:"expenses"`
	IsRecurring       bool        `json:"isRecurring"`
	RemindForDeadline bool        `json:"remindForDeadline"`
	LabelID           string      `json:"labelId" validate:"max=64"`
	SyncCalendar      bool        `json:"syncCalendar"`
}

func (req jobRequest) toJob(id string) (core.Job, error) {
	d, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Job{}, err
	}
	j := core.Job{
		ID:                id,
		Title:             sanitizeInput(req.Title),
		Description:       sanitizeInput(req.Description),
		Notes:             sanitizeInput(req.Notes),
		Category:          core.ParseCategory(req.Category),
		Date:              d,
		GrossIncome:       req.GrossIncome,
		Expenses:          req.Expenses,
		RemindForDeadline: req.RemindForDeadline,
		LabelID:           strings.TrimSpace(req.LabelID),
		Schedule:          core.OneOff{},
	}
	if req.IsRecurring {
		j.Schedule = core.Weekly{}
	}
	if strings.TrimSpace(req.Deadline) != "" {
		dl, err := core.ParseDeadline(req.Deadline)
		if err != nil {
			return core.Job{}, err
		}
		j.Deadline = &dl
	}
	return j, nil
}

type toggleRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// detachRequest carries the occurrence date and the edit for the new
// standalone job. An empty title keeps the template's.
type detachRequest struct {
	Date              string      `json:"date" validate:"required,datetime=2006-01-02"`
	Title             string      `json:"title" validate:"max=200"`
	Description       string      `json:"description" validate:"max=2000"`
	Notes             string      `json:"notes" validate:"max=5000"`
	Category          string      `json:"category" validate:"omitempty,oneof=work task"`
	Deadline          string      `json:"deadline" validate:"max=32"`
	GrossIncome       core.Amount `json:"grossIncome"`
	Expenses          core.Amount `json:"expenses"`
	RemindForDeadline bool        `json:"remindForDeadline"`
	LabelID           string      `json:"labelId" validate:"max=64"`
}

func (req detachRequest) toEdit() (core.Job, error) {
	edit := core.Job{
		Title:             sanitizeInput(req.Title),
		Description:       sanitizeInput(req.Description),
		Notes:             sanitizeInput(req.Notes),
		Category:          core.ParseCategory(req.Category),
		GrossIncome:       req.GrossIncome,
		Expenses:          req.Expenses,
		RemindForDeadline: req.RemindForDeadline,
		LabelID:           strings.TrimSpace(req.LabelID),
	}
	if strings.TrimSpace(req.Deadline) != "" {
		dl, err := core.ParseDeadline(req.Deadline)
		if err != nil {
			return core.Job{}, err
		}
		edit.Deadline = &dl
	}
	return edit.Normalize(), nil
}

type entryRequest struct {
	Title  string      `json:"title" validate:"required,max=200"`
	Date   string      `json:"date" validate:"required,datetime=2006-01-02"`
	Amount core.Amount `json:"amount"`
}

func (req entryRequest) parts() (string, core.Date, error) {
	d, err := core.ParseDate(req.Date)
	return sanitizeInput(req.Title), d, err
}

type labelRequest struct {
	Title string `json:"title" validate:"required,max=100"`
	Color string `json:"color" validate:"omitempty,max=32"`
}

type tokenRequest struct {
	AccessToken string    `json:"accessToken" validate:"required"`
	TokenType   string    `json:"tokenType" validate:"omitempty,max=32"`
	Expiry      time.Time `json:"expiry"`
}

type profileRequest struct {
	Email  string `json:"email" validate:"omitempty,email,max=254"`
	ChatID int64  `json:"chatId"`
}

type ackRequest struct {
	Keys []string `json:"keys" validate:"required,min=1,max=500,dive,startswith=notified-,max=200"`
}

// parseReportFilter reads granularity, year, startMonth and endMonth.
// Out-of-range months fall back to the full year; a start after the end is
// reconciled by moving the end.
func parseReportFilter(q url.Values) report.Filter {
	f := report.DefaultFilter()
	f.Granularity = report.ParseGranularity(q.Get("granularity"))
	if y := strings.TrimSpace(q.Get("year")); y != "" {
		f.Year = y
	}
	start := report.ParseMonth(q.Get("startMonth"), 1)
	end := report.ParseMonth(q.Get("endMonth"), 12)
	f.StartMonth, f.EndMonth = report.ReconcileMonths(start, end, report.StartBound)
	return f
}

// parseRange reads from/to dates, defaulting to the month around today.
func parseRange(q url.Values, today core.Date) (core.Date, core.Date, error) {
	from := core.NewDate(today.Year(), today.Month(), 1)
	to := core.DateOf(from.Time.AddDate(0, 1, -1))
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		from = d
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Date{}, core.Date{}, err
		}
		to = d
	}
	if to.Before(from) {
		return core.Date{}, core.Date{}, core.ErrInvalidDate
	}
	if to.Sub(from.Time) > maxRangeDays*24*time.Hour {
		return core.Date{}, core.Date{}, fmt.Errorf("%w: range longer than %d days", core.ErrInvalidDate, maxRangeDays)
	}
	return from, to, nil
}

// maxRangeDays bounds ICS exports.
const maxRangeDays = 366
