package main

import (
	"fmt"
	"strings"
	"time"

	"gv-go/internal/gv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// amount renders a whole-unit amount with digit grouping, e.g. 12,500.
func amount(n int64) string {
	return printer.Sprintf("%d", n)
}

func shortDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}

// cacheNotice labels a listing served from the snapshot cache.
func cacheNotice(savedAt time.Time, cause error) string {
	return fmt.Sprintf("(cached %s; server unavailable: %v)", savedAt.Local().Format("2006-01-02 15:04"), cause)
}

func printListing[T gv.Entity](l *gv.Listing[T], row func(T) string, empty string) {
	if l.Degraded() {
		fmt.Println(cacheNotice(l.SavedAt, l.Err))
	}
	if len(l.Items) == 0 {
		fmt.Println(empty)
		return
	}
	for _, e := range l.Items {
		fmt.Println(row(e))
	}
	if l.Cursor.LastPage > 1 {
		fmt.Printf("\nPage %d of %d (%d total)\n", l.Cursor.CurrentPage, l.Cursor.LastPage, l.Cursor.Total)
	}
}

func donationRow(d gv.Donation) string {
	return fmt.Sprintf("#%-5d %-40s %12s / %-12s %s", d.ID, truncate(d.Title, 40), amount(d.CurrentAmount), amount(d.GoalAmount), d.Status)
}

func requestRow(r gv.Request) string {
	return fmt.Sprintf("#%-5d %-40s %12s  %s", r.ID, truncate(r.Title, 40), amount(r.AmountNeeded), r.Status)
}

func verificationRow(v gv.Verification) string {
	return fmt.Sprintf("#%-5d %-10s %-15s %s", v.ID, v.Status, v.DocumentType, shortDate(v.CreatedAt))
}

func notificationRow(n gv.Notification) string {
	mark := "*"
	if n.IsRead() {
		mark = " "
	}
	return fmt.Sprintf("%s #%-5d %s  %s", mark, n.ID, shortDate(n.CreatedAt), n.Message)
}

func postRow(p gv.Post) string {
	vote := ""
	switch p.UserVote {
	case gv.VoteUp:
		vote = " [+]"
	case gv.VoteDown:
		vote = " [-]"
	}
	title := p.Title
	if title == "" {
		title = truncate(p.Content, 50)
	}
	return fmt.Sprintf("#%-5d %-50s +%d -%d%s  %d comments", p.ID, truncate(title, 50), p.Upvotes, p.Downvotes, vote, p.CommentsCount)
}

func commentRow(c gv.Comment) string {
	if c.Pending {
		return fmt.Sprintf("  (sending) %s", c.Content)
	}
	return fmt.Sprintf("  #%-5d %s  %s", c.ID, shortDate(c.CreatedAt), c.Content)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
