package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/chemtech/maintenance-push/internal/logger"
	"github.com/chemtech/maintenance-push/internal/model"
	"github.com/chemtech/maintenance-push/internal/storage"
)

// DispatchLogService records delivery attempts and answers admin queries.
type DispatchLogService struct {
	store storage.LogStore
	log   *logger.Logger
}

// NewDispatchLogService builds the dispatch log service.
func NewDispatchLogService(store storage.LogStore, log *logger.Logger) *DispatchLogService {
	return &DispatchLogService{store: store, log: log}
}

// Record appends entry. Failures are logged and swallowed so that the log
// never changes a dispatch outcome.
func (s *DispatchLogService) Record(ctx context.Context, entry *model.DispatchLog) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.AppendDispatchLog(ctx, entry); err != nil {
		s.log.Warn("append dispatch log failed", "error", err)
	}
}

// Query returns paginated logs.
func (s *DispatchLogService) Query(ctx context.Context, filter model.DispatchLogFilter) (*model.DispatchLogPage, error) {
	logs, err := s.filteredLogs(ctx, filter)
	if err != nil {
		return nil, err
	}

	total := len(logs)
	if filter.PageSize <= 0 {
		filter.PageSize = 10
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	start := min((filter.Page-1)*filter.PageSize, total)
	end := min(start+filter.PageSize, total)

	return &model.DispatchLogPage{
		Data:     logs[start:end],
		Total:    total,
		Pages:    (total + filter.PageSize - 1) / filter.PageSize,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// CountByStatus aggregates by delivery status.
func (s *DispatchLogService) CountByStatus(ctx context.Context, begin, end *time.Time) ([]map[string]any, error) {
	return s.countBy(ctx, begin, end, "status", func(l *model.DispatchLog) string {
		if l.Status == "" {
			return "UNKNOWN"
		}
		return l.Status
	})
}

// CountByType aggregates by notification type.
func (s *DispatchLogService) CountByType(ctx context.Context, begin, end *time.Time) ([]map[string]any, error) {
	return s.countBy(ctx, begin, end, "type", func(l *model.DispatchLog) string {
		if t := strings.TrimSpace(l.Type); t != "" {
			return t
		}
		return "other"
	})
}

// CountByErrorCode aggregates failed attempts by provider code.
func (s *DispatchLogService) CountByErrorCode(ctx context.Context, begin, end *time.Time) ([]map[string]any, error) {
	filter := model.DispatchLogFilter{Status: model.DispatchStatusFailed, BeginTime: begin, EndTime: end}
	logs, err := s.filteredLogs(ctx, filter)
	if err != nil {
		return nil, err
	}
	counter := make(map[string]int)
	for _, l := range logs {
		counter[l.ErrorCode]++
	}
	return mapToKV(counter, "errorCode"), nil
}

func (s *DispatchLogService) countBy(ctx context.Context, begin, end *time.Time, key string, pick func(*model.DispatchLog) string) ([]map[string]any, error) {
	logs, err := s.filteredLogs(ctx, model.DispatchLogFilter{BeginTime: begin, EndTime: end})
	if err != nil {
		return nil, err
	}
	counter := make(map[string]int)
	for _, l := range logs {
		counter[pick(l)]++
	}
	return mapToKV(counter, key), nil
}

func (s *DispatchLogService) filteredLogs(ctx context.Context, filter model.DispatchLogFilter) ([]*model.DispatchLog, error) {
	all, err := s.store.ListDispatchLogs(ctx)
	if err != nil {
		return nil, storageErr("list dispatch logs", err)
	}
	matches := make([]*model.DispatchLog, 0, len(all))
	for _, l := range all {
		if filter.UserType != "" && !strings.EqualFold(string(l.UserType), filter.UserType) {
			continue
		}
		if filter.Status != "" && !strings.EqualFold(l.Status, filter.Status) {
			continue
		}
		if filter.Type != "" && !strings.EqualFold(l.Type, filter.Type) {
			continue
		}
		if filter.BeginTime != nil && l.CreatedAt.Before(filter.BeginTime.UTC()) {
			continue
		}
		if filter.EndTime != nil && l.CreatedAt.After(filter.EndTime.UTC()) {
			continue
		}
		matches = append(matches, l)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].ID > matches[j].ID
	})
	return matches, nil
}

func mapToKV(counter map[string]int, key string) []map[string]any {
	result := make([]map[string]any, 0, len(counter))
	for k, v := range counter {
		result = append(result, map[string]any{
			key:     k,
			"count": v,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i][key].(string) < result[j][key].(string)
	})
	return result
}
