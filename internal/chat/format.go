package chat

import (
	"fmt"
	"strings"

	"github.com/Idan-Levin/slack-shopping-agent/internal/entity"
	"github.com/Idan-Levin/slack-shopping-agent/internal/product"
	"github.com/Idan-Levin/slack-shopping-agent/internal/scheduler"
	"github.com/Idan-Levin/slack-shopping-agent/internal/service/orders"
)

// FormatList renders the active shopping list for the channel.
func FormatList(items []entity.ShoppingItem) string {
	if len(items) == 0 {
		return "The shopping list is empty. Mention me with something to add!"
	}

	var sb strings.Builder
	sb.WriteString(":memo: *Current shopping list:*\n")
	for _, item := range items {
		sb.WriteString(formatLine(item))
		sb.WriteByte('\n')
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatLine(item entity.ShoppingItem) string {
	line := fmt.Sprintf("• *%s* ×%d", item.ProductTitle, item.Quantity)
	if item.Price != nil {
		line += fmt.Sprintf(" — $%.2f each", *item.Price)
	}
	line += fmt.Sprintf(" _(added by %s, id %d)_", item.UserName, item.ID)
	return line
}

// FormatSummary renders an order confirmation, itemized per user with
// subtotals and a grand total.
func FormatSummary(summary *orders.Summary) string {
	if summary.Empty() {
		return "The shopping list is empty, nothing to order."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, ":tada: *Order placed!* %d item(s), total *$%.2f*\n", summary.ItemCount, summary.Total)
	for _, user := range summary.Users {
		fmt.Fprintf(&sb, "*%s* — subtotal $%.2f\n", user.UserName, user.Subtotal)
		for _, item := range user.Items {
			sb.WriteString("  • ")
			sb.WriteString(item.ProductTitle)
			fmt.Fprintf(&sb, " ×%d", item.Quantity)
			if item.Price != nil {
				fmt.Fprintf(&sb, " ($%.2f each)", *item.Price)
			}
			sb.WriteByte('\n')
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatCandidates renders product suggestions as a numbered list the
// user can pick from by replying with a number.
func FormatCandidates(candidates []product.Candidate) string {
	var sb strings.Builder
	sb.WriteString("Here's what I found:\n")
	for i, c := range candidates {
		fmt.Fprintf(&sb, "%d. *%s*", i+1, c.Title)
		if c.Price != nil {
			fmt.Fprintf(&sb, " — $%.2f", *c.Price)
		}
		if c.CanonicalURL != "" {
			fmt.Fprintf(&sb, " <%s|link>", c.CanonicalURL)
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("Reply with a number to add one to the list.")
	return sb.String()
}

// FormatReminders renders the scheduled reminders for an admin.
func FormatReminders(reminders []scheduler.Reminder) string {
	if len(reminders) == 0 {
		return "No reminders are scheduled."
	}

	var sb strings.Builder
	sb.WriteString("*Scheduled reminders:*\n")
	for _, r := range reminders {
		fmt.Fprintf(&sb, "• id %d — `%s` — %s (next: %s)\n",
			r.ID, r.Spec, r.Text, r.NextRun.Format("Mon Jan 2 15:04 MST"))
	}
	return strings.TrimRight(sb.String(), "\n")
}
