// Package rolepropagator implements the Role Change Propagator (§4.10):
// whenever a role is saved or deleted, every group the owning user
// currently belongs to is reconciled against the Permission Resolver's
// fresh output — promoting, demoting, or retitling the user's Telegram
// chat-administrator status so it never drifts from the stored grant.
//
// Grounded on original_source/roles/models.py's BaseRole.save/delete
// signal handlers, which walk the same membership set to push Telegram
// API calls after every persistence change.
package rolepropagator

import (
	"context"
	"fmt"

	"github.com/unimi-net/campus-hub/internal/application/permission"
	"github.com/unimi-net/campus-hub/internal/domain/role"
	"github.com/unimi-net/campus-hub/internal/domain/shared"
	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
	"github.com/unimi-net/campus-hub/internal/infrastructure/external/telegram"
	"github.com/unimi-net/campus-hub/pkg/circuitbreaker"
	"github.com/unimi-net/campus-hub/pkg/logger"
	"github.com/unimi-net/campus-hub/pkg/retry"
)

// ClientFactory resolves the Telegram Client for a group's bot token —
// the same multi-bot seam the scheduler jobs use.
type ClientFactory interface {
	ClientFor(token string) *telegram.Client
}

// Propagator reconciles a user's Telegram admin status across every group
// they belong to after a role change.
type Propagator struct {
	resolver    *permission.Resolver
	memberships telegramgroup.MembershipRepository
	groups      telegramgroup.GroupRepository
	clients     ClientFactory
	log         *logger.Logger
	retrier     *retry.Retrier
	breaker     *circuitbreaker.CircuitBreaker
}

// New constructs a Propagator.
func New(resolver *permission.Resolver, memberships telegramgroup.MembershipRepository, groups telegramgroup.GroupRepository, clients ClientFactory, log *logger.Logger) *Propagator {
	return &Propagator{
		resolver:    resolver,
		memberships: memberships,
		groups:      groups,
		clients:     clients,
		log:         log,
		retrier:     retry.TelegramRetrier(),
		breaker: circuitbreaker.TelegramAPIBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("rolepropagator: breaker state change", logger.String("from", from.String()), logger.String("to", to.String()))
		}),
	}
}

// Reconcile re-resolves userID's effective permissions in every group they
// currently belong to and pushes the result to Telegram. Called after a
// role Save (non-empty result promotes/retitles) or Delete (an empty
// result, since the deleted role no longer contributes, demotes to plain
// member if no other role grants rights in that group).
func (p *Propagator) Reconcile(ctx context.Context, userID shared.TelegramID) error {
	memberships, err := p.memberships.FindGroupsForUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("rolepropagator: list memberships: %w", err)
	}
	for _, m := range memberships {
		if !m.Status.IsActive() {
			continue
		}
		p.reconcileOne(ctx, userID, m.GroupID)
	}
	return nil
}

func (p *Propagator) reconcileOne(ctx context.Context, userID shared.TelegramID, chatID shared.ChatID) {
	group, err := p.groups.FindByID(ctx, chatID)
	if err != nil {
		p.log.Warn("rolepropagator: unknown group, skipping", logger.String("chat", chatID.String()))
		return
	}
	result, err := p.resolver.Resolve(ctx, userID, chatID)
	if err != nil {
		p.log.Warn("rolepropagator: resolve failed", logger.Err(err), logger.String("chat", chatID.String()))
		return
	}

	client := p.clients.ClientFor(group.BotToken)
	rights := telegramRights(result.Rights)

	err = p.breaker.Execute(ctx, func(ctx context.Context) error {
		return p.retrier.Do(ctx, func(ctx context.Context) error {
			return client.PromoteChatMember(ctx, chatID.Int64(), userID.Int64(), rights)
		})
	})
	if err != nil {
		p.log.Warn("rolepropagator: promoteChatMember failed", logger.Err(err), logger.String("chat", chatID.String()))
		return
	}

	if result.CustomTitle == "" {
		return
	}
	if err := client.SetChatAdministratorCustomTitle(ctx, chatID.Int64(), userID.Int64(), result.CustomTitle); err != nil {
		p.log.Warn("rolepropagator: setChatAdministratorCustomTitle failed", logger.Err(err), logger.String("chat", chatID.String()))
	}
}

// PropagatingRoleRepository decorates a role.Repository so every Save and
// Delete triggers Reconcile for the affected user, without requiring every
// call site (command handlers, future admin APIs) to remember to do so
// itself — the save/delete hook original_source/roles/models.py implements
// as Django signal receivers.
type PropagatingRoleRepository struct {
	role.Repository
	propagator *Propagator
}

// NewPropagatingRoleRepository wraps repo with post-write reconciliation.
func NewPropagatingRoleRepository(repo role.Repository, propagator *Propagator) *PropagatingRoleRepository {
	return &PropagatingRoleRepository{Repository: repo, propagator: propagator}
}

func (p *PropagatingRoleRepository) Save(ctx context.Context, r *role.BaseRole) error {
	if err := p.Repository.Save(ctx, r); err != nil {
		return err
	}
	if err := p.propagator.Reconcile(ctx, r.UserID); err != nil {
		p.propagator.log.Warn("rolepropagator: reconcile after save failed", logger.Err(err))
	}
	return nil
}

func (p *PropagatingRoleRepository) Delete(ctx context.Context, id string) error {
	existing, findErr := p.Repository.FindByID(ctx, id)
	if err := p.Repository.Delete(ctx, id); err != nil {
		return err
	}
	if findErr != nil || existing == nil {
		return nil
	}
	if err := p.propagator.Reconcile(ctx, existing.UserID); err != nil {
		p.propagator.log.Warn("rolepropagator: reconcile after delete failed", logger.Err(err))
	}
	return nil
}

// telegramRights maps the Permission Resolver's Right→bool map onto the
// Telegram promoteChatMember wire shape. A right absent from the map (no
// role granted it) is treated as false, demoting that specific capability.
func telegramRights(rights map[role.Right]bool) telegram.AdminRights {
	return telegram.AdminRights{
		CanChangeInfo:       rights[role.RightChangeInfo],
		CanInviteUsers:      rights[role.RightInviteUsers],
		CanPinMessages:      rights[role.RightPinMessages],
		CanManageChat:       rights[role.RightManageChat],
		CanDeleteMessages:   rights[role.RightDeleteMessages],
		CanManageVoiceChats: rights[role.RightManageVoiceChat],
		CanRestrictMembers:  rights[role.RightRestrictMembers],
		CanPromoteMembers:   rights[role.RightPromoteMembers],
	}
}
