package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/stella-events/ticketing/internal/model"
)

// BuildTicketEmail assembles the buyer-facing ticket email: one block per
// ticket with its QR embedded by CID, plus the PNGs attached as a fallback
// for clients that strip inline images. images is keyed by ticket ID.
func BuildTicketEmail(order *model.Order, event *model.Event, tt *model.TicketType,
	tickets []model.Ticket, images map[string][]byte) Message {

	msg := Message{
		To:      order.BuyerEmail,
		ToName:  order.BuyerName,
		Subject: fmt.Sprintf("Your Tickets — %s (Stella Events)", event.Title),
	}

	var blocks strings.Builder
	for i, t := range tickets {
		cid := fmt.Sprintf("ticket-%d@stella-events", i+1)
		msg.Attachments = append(msg.Attachments, Attachment{
			Filename: fmt.Sprintf("ticket-%d.png", i+1),
			CID:      cid,
			Content:  images[t.ID],
		})
		fmt.Fprintf(&blocks, `
      <div style="border:1px solid #e5e7eb;border-radius:14px;padding:14px;margin:14px 0;">
        <div style="font-weight:800;margin-bottom:6px;">Ticket %d — %s (%s)</div>
        <img alt="QR Code" src="cid:%s" style="width:200px;height:200px;display:block;border:1px solid #e5e7eb;border-radius:12px;" />
        <div style="margin-top:8px;font-size:12px;color:#6b7280;">Ref: %s</div>
      </div>`,
			i+1, tt.Name, FormatAmount(tt.PriceCents, tt.Currency), cid, t.ID)
	}

	greeting := order.BuyerName
	if greeting == "" {
		greeting = "there"
	}

	msg.HTML = fmt.Sprintf(`
  <div style="font-family:system-ui,Arial,sans-serif;max-width:720px;margin:0 auto;">
    <div style="font-size:12px;letter-spacing:1px;color:#6b7280;font-weight:700;">STELLA EVENTS</div>
    <div style="font-size:26px;font-weight:900;margin-top:6px;">Your Tickets — %s</div>
    <div style="color:#6b7280;margin-top:6px;">%s · %s</div>
    <div style="margin-top:12px;">
      Hi %s,<br/>
      Payment confirmed. Here are your QR ticket(s); show them at the entrance.
    </div>
    %s
    <div style="margin-top:10px;color:#6b7280;font-size:13px;">
      If a QR does not display, use the attached PNG(s).
    </div>
    <div style="margin-top:14px;color:#6b7280;">— Stella Events</div>
  </div>`,
		event.Title, event.Venue, FormatDateTime(event.StartAt), greeting, blocks.String())

	return msg
}

// FormatAmount renders minor-currency units for display, e.g. 1200 EUR
// cents as "€12.00".
func FormatAmount(cents int64, currency string) string {
	symbol := strings.ToUpper(currency) + " "
	switch strings.ToUpper(currency) {
	case "EUR":
		symbol = "€"
	case "USD":
		symbol = "$"
	case "GBP":
		symbol = "£"
	}
	return fmt.Sprintf("%s%d.%02d", symbol, cents/100, cents%100)
}

// FormatDateTime renders an event start time for the email body.
func FormatDateTime(t time.Time) string {
	return t.Format("Mon, 02 Jan 2006 15:04")
}
