package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/unimi-net/campus-hub/internal/domain/moderation"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/domain/telegramuser"
	"github.com/unimi-net/campus-hub/pkg/circuitbreaker"
	"github.com/unimi-net/campus-hub/pkg/logger"
	"github.com/unimi-net/campus-hub/pkg/retry"
)

// SyncExternalBlocklistJob pulls a community-wide external ban list and
// replaces the external_feed blacklist partition atomically, ban-propagating
// every newly-inserted id onto a matching TelegramUser (§3, §4.9).
type SyncExternalBlocklistJob struct {
	url        string
	httpClient *http.Client
	blacklist  moderation.BlacklistRepository
	users      telegramuser.Repository
	log        *logger.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
}

// NewSyncExternalBlocklistJob constructs the job. An empty url disables the
// job's effect (§6: "external_blocklist_url — optional").
func NewSyncExternalBlocklistJob(url string, blacklist moderation.BlacklistRepository, users telegramuser.Repository, log *logger.Logger) *SyncExternalBlocklistJob {
	return &SyncExternalBlocklistJob{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		blacklist:  blacklist,
		users:      users,
		log:        log,
		retrier:    retry.ExternalFeedRetrier(),
		breaker:    circuitbreaker.ExternalFeedBreaker(nil),
	}
}

func (j *SyncExternalBlocklistJob) Name() string { return "sync_external_blocklist" }
func (j *SyncExternalBlocklistJob) Description() string {
	return "fetches the external ban feed and replaces the external_feed blacklist partition"
}

type externalBlocklistResponse struct {
	UserIDs []int64 `json:"user_ids"`
}

func (j *SyncExternalBlocklistJob) Run(ctx context.Context) error {
	if j.url == "" {
		return nil
	}
	ids, err := j.fetch(ctx)
	if err != nil {
		return fmt.Errorf("jobs: sync_external_blocklist: fetch: %w", err)
	}

	telegramIDs := make([]shared.TelegramID, 0, len(ids))
	for _, id := range ids {
		telegramIDs = append(telegramIDs, shared.TelegramID(id))
	}

	inserted, err := j.blacklist.ReplaceExternalFeed(ctx, telegramIDs)
	if err != nil {
		return fmt.Errorf("jobs: sync_external_blocklist: replace: %w", err)
	}

	for _, id := range inserted {
		user, err := j.users.FindByID(ctx, id)
		if err != nil {
			continue
		}
		user.Ban()
		if err := j.users.Upsert(ctx, user); err != nil {
			j.log.Error("jobs: sync_external_blocklist: failed to propagate ban", logger.Err(err), logger.String("user", id.String()))
		}
	}
	return nil
}

func (j *SyncExternalBlocklistJob) fetch(ctx context.Context) ([]int64, error) {
	var body externalBlocklistResponse
	err := j.breaker.Execute(ctx, func(ctx context.Context) error {
		return j.retrier.Do(ctx, func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
			if err != nil {
				return retry.Permanent(err)
			}
			resp, err := j.httpClient.Do(req)
			if err != nil {
				return retry.Retryable(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 500 {
				return retry.Retryable(fmt.Errorf("external blocklist: server error %d", resp.StatusCode))
			}
			if resp.StatusCode != http.StatusOK {
				return retry.Permanent(fmt.Errorf("external blocklist: unexpected status %d", resp.StatusCode))
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				return retry.Permanent(shared.NewDomainError("jobs", "sync_external_blocklist", shared.ErrParse, "malformed blocklist response"))
			}
			return nil
		})
	})
	return body.UserIDs, err
}
