package ticket

import (
	"fmt"

	"github.com/gakushoku/kitchen-terminal/internal/order"
	"github.com/gakushoku/kitchen-terminal/internal/printer"
)

const (
	heavyDivider = "━━━━━━━━━━━━━━━━━━━━━━━━"
	lightDivider = "--------------------------------"
)

// Format lays out the kitchen ticket for an order. The result depends only
// on the order and the ticket number, so re-rendering the same inputs
// yields an identical job.
func Format(o *order.Order, ticketNo int) *printer.Job {
	var ins []printer.Instruction

	ins = append(ins,
		printer.Align(printer.AlignCenter),
		printer.Size(2, 2),
		printer.Text("【 学食注文伝票 】"),
		printer.Size(1, 1),
		printer.Text(heavyDivider),
		printer.Size(3, 3),
		printer.Text(fmt.Sprintf("No.%02d", ticketNo)),
		printer.Size(1, 1),
		printer.Feed(1),
		printer.Align(printer.AlignLeft),
		printer.Text(fmt.Sprintf("注文ID: %s", o.OrderID)),
		printer.Text(fmt.Sprintf("注文時刻: %s", o.OrderTime.Format("2006/01/02 15:04"))),
		printer.Feed(1),
		printer.Style(true),
		printer.Text("【 注文内容 】"),
		printer.Style(false),
		printer.Text(lightDivider),
	)

	for i, item := range o.Items {
		ins = append(ins,
			printer.Text(fmt.Sprintf("%d. %s", i+1, item.Name)),
			printer.Text(fmt.Sprintf("   数量: %d × ¥%d = ¥%d", item.Quantity, item.UnitPrice, item.TotalPrice)),
		)
		if item.Notes != "" {
			ins = append(ins, printer.Text(fmt.Sprintf("   備考: %s", item.Notes)))
		}
		ins = append(ins, printer.Feed(1))
	}

	ins = append(ins,
		printer.Text(heavyDivider),
		printer.Align(printer.AlignRight),
		printer.Size(1, 2),
		printer.Text(fmt.Sprintf("合計: ¥%d", o.TotalAmount)),
		printer.Size(1, 1),
		printer.Align(printer.AlignLeft),
	)

	if o.PaymentStatus == order.PaymentUnknown {
		ins = append(ins,
			printer.Feed(1),
			printer.Text("※ 決済状態未確認"),
		)
	}

	if o.SpecialInstructions != "" {
		ins = append(ins,
			printer.Feed(1),
			printer.Style(true),
			printer.Text("【 特記事項 】"),
			printer.Style(false),
			printer.Text(o.SpecialInstructions),
		)
	}

	ins = append(ins,
		printer.Feed(1),
		printer.Align(printer.AlignCenter),
		printer.Text("調理完了後、お客様をお呼びください"),
		printer.Feed(2),
		printer.Cut(),
	)

	return &printer.Job{
		ID:           fmt.Sprintf("%s-no%02d", o.OrderID, ticketNo),
		OrderID:      o.OrderID,
		TicketNo:     ticketNo,
		Instructions: ins,
	}
}
