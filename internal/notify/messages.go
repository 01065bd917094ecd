package notify

import (
	"fmt"
	"html"
	"strings"

	"garagebook/internal/models"
)

// Message is a rendered mail ready for a Mailer.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

func customerConfirmation(b *models.Booking) Message {
	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\n", b.Name)
	fmt.Fprintf(&text, "Thank you for booking %s on %s.\n", b.Service, b.Date)
	fmt.Fprintf(&text, "Car: %s\n\n", b.CarModel)
	text.WriteString("We will contact you shortly to confirm the appointment.\n")

	var body strings.Builder
	fmt.Fprintf(&body, "<p>Hi %s,</p>", html.EscapeString(b.Name))
	fmt.Fprintf(&body, "<p>Thank you for booking <b>%s</b> on <b>%s</b>.</p>",
		html.EscapeString(b.Service), html.EscapeString(b.Date))
	fmt.Fprintf(&body, "<p>Car: %s</p>", html.EscapeString(b.CarModel))
	body.WriteString("<p>We will contact you shortly to confirm the appointment.</p>")

	return Message{
		To:      b.Email,
		Subject: "Booking received: " + b.Service,
		Text:    text.String(),
		HTML:    body.String(),
	}
}

func adminAlert(b *models.Booking, to string) Message {
	rows := bookingRows(b)

	var text strings.Builder
	text.WriteString("New booking received\n\n")
	for _, r := range rows {
		fmt.Fprintf(&text, "%s: %s\n", r[0], r[1])
	}

	var body strings.Builder
	body.WriteString("<h3>New booking received</h3><table>")
	for _, r := range rows {
		fmt.Fprintf(&body, "<tr><td><b>%s</b></td><td>%s</td></tr>", r[0], html.EscapeString(r[1]))
	}
	body.WriteString("</table>")

	return Message{
		To:      to,
		Subject: fmt.Sprintf("New booking: %s (%s)", b.Name, b.Service),
		Text:    text.String(),
		HTML:    body.String(),
	}
}

func pendingDigest(s *models.DashboardStats, to string) Message {
	text := fmt.Sprintf("Active bookings: %d\nPending: %d\nCompleted: %d\n", s.Total, s.Pending, s.Completed)
	body := fmt.Sprintf("<h3>Daily summary</h3><ul><li>Active bookings: %d</li><li>Pending: %d</li><li>Completed: %d</li></ul>",
		s.Total, s.Pending, s.Completed)

	return Message{
		To:      to,
		Subject: fmt.Sprintf("Daily summary: %d pending bookings", s.Pending),
		Text:    text,
		HTML:    body,
	}
}

// telegramText renders the admin alert for a chat message.
func telegramText(b *models.Booking) string {
	var text strings.Builder
	text.WriteString("🚗 New booking\n")
	for _, r := range bookingRows(b) {
		fmt.Fprintf(&text, "%s: %s\n", r[0], r[1])
	}
	return text.String()
}

func bookingRows(b *models.Booking) [][2]string {
	rows := [][2]string{
		{"Name", b.Name},
		{"Email", b.Email},
		{"Phone", b.Phone},
		{"Service", b.Service},
		{"Date", b.Date},
		{"Car", b.CarModel},
	}
	if b.Message != "" {
		rows = append(rows, [2]string{"Message", b.Message})
	}
	return rows
}
