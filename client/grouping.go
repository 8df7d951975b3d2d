package client

import (
	"sort"
	"time"

	"github.com/kendall-kelly/consulting-portal-api/models"
)

// DisplayMessage is a message plus whether its sender line should be drawn
type DisplayMessage struct {
	models.Message
	ShowSender bool
}

// MessageGroup holds one calendar day of messages
type MessageGroup struct {
	Label    string
	Date     time.Time
	Messages []DisplayMessage
}

// GroupByDay buckets messages by calendar day in now's location, oldest day first.
// Days are labelled Today, Yesterday or "January 2, 2006". Within a day the order is stable by
// timestamp and a run of messages from one sender only shows the sender on the first.
func GroupByDay(messages []models.Message, now time.Time) []MessageGroup {
	sorted := make([]models.Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	loc := now.Location()
	today := startOfDay(now)
	yesterday := today.AddDate(0, 0, -1)

	var groups []MessageGroup
	for _, msg := range sorted {
		day := startOfDay(msg.Timestamp.In(loc))
		if len(groups) == 0 || !groups[len(groups)-1].Date.Equal(day) {
			groups = append(groups, MessageGroup{Label: dayLabel(day, today, yesterday), Date: day})
		}
		group := &groups[len(groups)-1]
		showSender := true
		if n := len(group.Messages); n > 0 && group.Messages[n-1].SenderID == msg.SenderID {
			showSender = false
		}
		group.Messages = append(group.Messages, DisplayMessage{Message: msg, ShowSender: showSender})
	}
	return groups
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func dayLabel(day, today, yesterday time.Time) string {
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(yesterday):
		return "Yesterday"
	}
	return day.Format("January 2, 2006")
}
