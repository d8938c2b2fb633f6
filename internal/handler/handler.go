package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cradoe/skypay/internal/config"
	"github.com/cradoe/skypay/internal/errHandler"
	"github.com/cradoe/skypay/internal/helper"
	"github.com/cradoe/skypay/internal/onboarding"
	"github.com/cradoe/skypay/internal/repository"
)

// SelfieUploader stores a director selfie and returns the URL the liveness check reads.
type SelfieUploader interface {
	UploadSelfie(ctx context.Context, applicantID string, file io.Reader) (string, error)
}

type RouteHandler struct {
	ErrHandler   *errHandler.ErrorRepository
	Orchestrator *onboarding.Orchestrator
	DB           repository.Database
	Helper       *helper.HelperRepository
	Config       *config.Config
	FileUploader SelfieUploader
	Logger       *slog.Logger
}

func NewRouteHandler(handler *RouteHandler) *RouteHandler {
	return &RouteHandler{
		ErrHandler:   handler.ErrHandler,
		Orchestrator: handler.Orchestrator,
		DB:           handler.DB,
		Helper:       handler.Helper,
		Config:       handler.Config,
		FileUploader: handler.FileUploader,
		Logger:       handler.Logger,
	}
}

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	queryDateLayout  = "2006-01-02"
)

// listQuery holds the filters shared by list endpoints. EndDate is exclusive and
// already moved to the day after the requested end_date.
type listQuery struct {
	StartDate *time.Time
	EndDate   *time.Time
	Search    string
	Limit     int
	Page      int
}

func (q listQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

func (q listQuery) Within(t time.Time) bool {
	if q.StartDate != nil && t.Before(*q.StartDate) {
		return false
	}
	return q.EndDate == nil || t.Before(*q.EndDate)
}

func parseListQuery(r *http.Request) listQuery {
	values := r.URL.Query()
	query := listQuery{
		Search: strings.ToLower(strings.TrimSpace(values.Get("search"))),
		Limit:  defaultPageLimit,
		Page:   1,
	}

	if start, err := time.Parse(queryDateLayout, values.Get("start_date")); err == nil {
		query.StartDate = &start
	}
	if end, err := time.Parse(queryDateLayout, values.Get("end_date")); err == nil {
		end = end.AddDate(0, 0, 1)
		query.EndDate = &end
	}

	if limit, err := strconv.Atoi(values.Get("limit")); err == nil && limit > 0 {
		query.Limit = min(limit, maxPageLimit)
	}
	if page, err := strconv.Atoi(values.Get("page")); err == nil && page >= 1 {
		query.Page = page
	}

	return query
}
