package service

import (
	"context"
	"fmt"
	"time"

	"github.com/chemtech/maintenance-push/internal/logger"
	"github.com/chemtech/maintenance-push/internal/model"
	"github.com/chemtech/maintenance-push/internal/push"
	"github.com/chemtech/maintenance-push/internal/storage"
	"golang.org/x/sync/errgroup"
)

const (
	defaultSendTimeout    = 10 * time.Second
	defaultMaxConcurrency = 16
)

// RoleDirectory resolves team members by role.
type RoleDirectory interface {
	ListTeamMemberIDsByRole(ctx context.Context, role model.TeamRole) ([]uint, error)
}

// Observer receives delivery outcomes. code is empty for a successful send.
type Observer interface {
	ObserveSend(userType model.UserType, code string, elapsed time.Duration)
	ObserveRemoved(userType model.UserType, n int)
}

// DispatcherConfig tunes fan-out.
type DispatcherConfig struct {
	SendTimeout    time.Duration
	MaxConcurrency int
}

// Dispatcher delivers a payload to every active token of one or more
// recipients.
type Dispatcher struct {
	tokens      storage.TokenStore
	provider    push.Provider
	directory   RoleDirectory
	logs        *DispatchLogService
	observer    Observer
	log         *logger.Logger
	sendTimeout time.Duration
	limit       int
}

// NewDispatcher builds a Dispatcher. directory and logs may be nil.
func NewDispatcher(tokens storage.TokenStore, provider push.Provider, directory RoleDirectory, logs *DispatchLogService, log *logger.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultMaxConcurrency
	}
	return &Dispatcher{
		tokens:      tokens,
		provider:    provider,
		directory:   directory,
		logs:        logs,
		log:         log.With("component", "dispatcher"),
		sendTimeout: cfg.SendTimeout,
		limit:       cfg.MaxConcurrency,
	}
}

// SetObserver installs o to receive delivery outcomes.
func (d *Dispatcher) SetObserver(o Observer) {
	d.observer = o
}

// SendToUser sends payload to each active token of the principal, one
// provider call per token. Every attempt completes before tokens reported
// as permanently invalid are deleted in a single batch.
func (d *Dispatcher) SendToUser(ctx context.Context, userID uint, userType model.UserType, payload model.Payload) (model.DispatchResult, error) {
	result := model.DispatchResult{UserID: userID, UserType: userType}

	tokens, err := d.tokens.ListActiveTokens(ctx, userID, userType)
	if err != nil {
		return result, storageErr("list active tokens", err)
	}
	if len(tokens) == 0 {
		result.Message = "no device tokens found"
		d.log.Debug("no device tokens", "userId", userID, "userType", userType)
		return result, nil
	}

	outcomes := make([]error, len(tokens))
	elapsed := make([]time.Duration, len(tokens))
	var g errgroup.Group
	g.SetLimit(d.limit)
	for i, t := range tokens {
		i, t := i, t
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()
			start := time.Now()
			defer func() { elapsed[i] = time.Since(start) }()
			_, outcomes[i] = d.provider.Send(sendCtx, push.Message{
				Token: t.Token,
				Title: payload.Title,
				Body:  payload.Body,
				Data:  payload.Data,
			})
			return nil
		})
	}
	_ = g.Wait()

	var stale []string
	for i, err := range outcomes {
		if d.observer != nil {
			code := ""
			if err != nil {
				code = push.CodeOf(err)
			}
			d.observer.ObserveSend(userType, code, elapsed[i])
		}
		if err == nil {
			result.SuccessCount++
			continue
		}
		result.FailureCount++
		if push.IsPermanent(err) {
			stale = append(stale, tokens[i].Token)
		}
		d.log.Warn("push delivery failed",
			"userId", userID,
			"userType", userType,
			"token", tokens[i].Token,
			"code", push.CodeOf(err),
			"error", err)
	}

	// cleanup and logging run even when the caller has gone away
	bg := context.WithoutCancel(ctx)
	removed := make(map[string]bool, len(stale))
	if len(stale) > 0 {
		n, err := d.tokens.DeleteTokens(bg, stale)
		if err != nil {
			d.log.Error("remove invalid tokens failed", "userId", userID, "count", len(stale), "error", err)
		} else {
			result.RemovedCount = int(n)
			if d.observer != nil {
				d.observer.ObserveRemoved(userType, int(n))
			}
			for _, t := range stale {
				removed[t] = true
			}
			d.log.Info("removed invalid tokens", "userId", userID, "userType", userType, "count", n)
		}
	}

	for i, t := range tokens {
		entry := &model.DispatchLog{
			UserID:       userID,
			UserType:     userType,
			TokenPreview: logger.Mask(t.Token),
			Title:        payload.Title,
			Type:         payload.Data["type"],
			Status:       model.DispatchStatusSuccess,
			Removed:      removed[t.Token],
		}
		if err := outcomes[i]; err != nil {
			entry.Status = model.DispatchStatusFailed
			entry.ErrorCode = push.CodeOf(err)
			entry.Message = err.Error()
		}
		d.logs.Record(bg, entry)
	}

	result.Success = result.SuccessCount > 0
	result.Message = fmt.Sprintf("delivered to %d of %d devices", result.SuccessCount, len(tokens))
	d.log.Info("notification dispatched",
		"userId", userID,
		"userType", userType,
		"success", result.SuccessCount,
		"failure", result.FailureCount,
		"removed", result.RemovedCount)
	return result, nil
}

// SendToMultipleUsers runs SendToUser for each recipient concurrently.
// Results line up with recipients; a failure for one recipient is recorded
// in its result and never affects the others.
func (d *Dispatcher) SendToMultipleUsers(ctx context.Context, recipients []model.Recipient, payload model.Payload) []model.DispatchResult {
	results := make([]model.DispatchResult, len(recipients))
	var g errgroup.Group
	g.SetLimit(d.limit)
	for i, r := range recipients {
		i, r := i, r
		g.Go(func() error {
			res, err := d.SendToUser(ctx, r.UserID, r.UserType, payload)
			if err != nil {
				d.log.Error("dispatch to recipient failed", "userId", r.UserID, "userType", r.UserType, "error", err)
				res = model.DispatchResult{
					UserID:   r.UserID,
					UserType: r.UserType,
					Message:  "dispatch failed",
					Error:    err.Error(),
				}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// SendToRole sends payload to every team member holding role.
func (d *Dispatcher) SendToRole(ctx context.Context, role model.TeamRole, payload model.Payload) ([]model.DispatchResult, error) {
	if d.directory == nil {
		return nil, fmt.Errorf("role directory not configured")
	}
	ids, err := d.directory.ListTeamMemberIDsByRole(ctx, role)
	if err != nil {
		return nil, storageErr("list team members", err)
	}
	recipients := make([]model.Recipient, 0, len(ids))
	for _, id := range ids {
		recipients = append(recipients, model.Recipient{UserID: id, UserType: role.UserType()})
	}
	return d.SendToMultipleUsers(ctx, recipients, payload), nil
}
