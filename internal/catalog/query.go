package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/musicportal-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/musicportal-backend/pkg/errors"
	"github.com/angelmondragon/musicportal-backend/pkg/metrics"
	"github.com/angelmondragon/musicportal-backend/pkg/pagination"
	"gorm.io/gorm"
)

// QueryService browses the song catalog.
type QueryService interface {
	Query(ctx context.Context, params QueryParams) (*QueryResult, error)
}

type QueryServiceParams struct {
	DB              *gorm.DB
	DefaultPageSize int
	MaxPageSize     int
	Metrics         *metrics.PortalMetrics
}

type queryService struct {
	repo        *Repository
	defaultSize int
	maxSize     int
	metrics     *metrics.PortalMetrics
}

func NewQueryService(params QueryServiceParams) (QueryService, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	defaultSize := params.DefaultPageSize
	if defaultSize <= 0 {
		defaultSize = pagination.DefaultPageSize
	}
	maxSize := params.MaxPageSize
	if maxSize <= 0 {
		maxSize = 100
	}
	return &queryService{
		repo:        NewRepository(params.DB),
		defaultSize: defaultSize,
		maxSize:     maxSize,
		metrics:     params.Metrics,
	}, nil
}

// Query filters, sorts, counts and then paginates. A page outside
// [1, TotalPages] yields no items but still reports the totals.
func (s *queryService) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	start := time.Now()
	sort := enums.ParseSongSort(string(params.Sort))
	size := pagination.NormalizePageSize(params.PageSize, s.defaultSize, s.maxSize)
	filter := songFilter{Search: strings.TrimSpace(params.Search), GenreID: params.GenreID}

	count, err := s.repo.CountSongs(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count songs")
	}

	page := pagination.PageRequest{Number: params.Page, Size: size}
	totalPages := pagination.TotalPages(count, size)
	result := &QueryResult{
		Items:      []SongDTO{},
		Page:       params.Page,
		PageSize:   size,
		TotalCount: count,
		TotalPages: totalPages,
	}
	if page.InRange(totalPages) {
		rows, err := s.repo.ListSongs(ctx, filter, sort, page.Offset(), size)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list songs")
		}
		result.Items = songsFromModels(rows)
	}

	s.metrics.ObserveQuery(string(sort), time.Since(start))
	return result, nil
}
