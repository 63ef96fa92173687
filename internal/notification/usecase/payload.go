package usecase

import (
	"fmt"
	"strconv"
	"time"

	"ipo-reminder-backend/internal/notification/domain"
	"ipo-reminder-backend/pkg/fcm"
)

const dateLayout = "2006-01-02"

// BuildPayload renders the push notification for an IPO event
func BuildPayload(ipo domain.IPO, typ domain.NotificationType, now time.Time, loc *time.Location) fcm.NotificationData {
	daysUntil := ipo.DaysUntilOpen(now, loc)
	data := map[string]string{
		"type":      string(typ),
		"ipo_id":    strconv.FormatUint(uint64(ipo.ID), 10),
		"company":   ipo.Company,
		"startDate": ipo.StartDate.In(loc).Format(dateLayout),
		"endDate":   ipo.EndDate.In(loc).Format(dateLayout),
		"daysUntil": strconv.Itoa(daysUntil),
	}

	if typ == domain.NotificationTypeOpening {
		return fcm.NotificationData{
			Title: "🔔 IPO Opening Today!",
			Body:  fmt.Sprintf("%s IPO opens today until %s", ipo.Company, data["endDate"]),
			Data:  data,
			Color: "#4CAF50",
			Badge: 1,
		}
	}

	dayText := "tomorrow"
	switch {
	case daysUntil == 0:
		dayText = "today"
	case daysUntil > 1:
		dayText = fmt.Sprintf("in %d days", daysUntil)
	}
	return fcm.NotificationData{
		Title: "📅 Upcoming IPO Reminder",
		Body:  fmt.Sprintf("%s IPO opens %s", ipo.Company, dayText),
		Data:  data,
		Color: "#2196F3",
	}
}
