package moderation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/unimi-net/campus-hub/internal/domain/telegramgroup"
	"github.com/unimi-net/campus-hub/internal/domain/telegramuser"
)

// statusAbbreviation renders a membership status as the short tag the
// original dossier template shows next to each group.
func statusAbbreviation(s telegramgroup.MembershipStatus) string {
	switch s {
	case telegramgroup.MembershipCreator:
		return "CR"
	case telegramgroup.MembershipAdministrator:
		return "ADM"
	case telegramgroup.MembershipMember:
		return "MEM"
	case telegramgroup.MembershipRestricted:
		return "RST"
	case telegramgroup.MembershipLeft:
		return "LFT"
	case telegramgroup.MembershipKicked:
		return "KCK"
	default:
		return "?"
	}
}

// renderDossier builds the `/info` HTML dossier per §6: identity fields
// followed by a bullet list of memberships sorted by messages_count desc.
func renderDossier(user *telegramuser.TelegramUser, memberships []*telegramgroup.GroupMembership) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b> (#uid_%d)\n", user.DisplayName(), int64(user.ID))
	if user.Username != "" {
		fmt.Fprintf(&b, "Username: @%s\n", user.Username)
	}
	fmt.Fprintf(&b, "Reputation: %d\n", user.Reputation)
	fmt.Fprintf(&b, "Warnings: %d\n", user.WarnCount)
	fmt.Fprintf(&b, "Last seen: %s\n", user.LastSeen.Format("02/01/2006 15:04"))
	if user.Banned {
		b.WriteString("Globally banned: yes\n")
	}

	sorted := make([]*telegramgroup.GroupMembership, len(memberships))
	copy(sorted, memberships)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MessagesCount > sorted[j].MessagesCount
	})

	if len(sorted) > 0 {
		b.WriteString("\nMemberships:\n")
		for _, m := range sorted {
			fmt.Fprintf(&b, "• #gid_%d [%s] — %d messages\n", int64(m.GroupID), statusAbbreviation(m.Status), m.MessagesCount)
		}
	}
	return b.String()
}
