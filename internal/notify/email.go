package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

var statusLabels = map[string]string{
	"pending":   "menunggu konfirmasi",
	"confirmed": "dikonfirmasi",
	"shipping":  "sedang dikirim",
	"completed": "selesai",
	"canceled":  "dibatalkan",
}

var (
	confirmationTmpl = template.Must(template.New("confirmation").Parse(
		`<p>Halo {{.Name}},</p>
<p>Terima kasih, pesanan <strong>{{.OrderID}}</strong> sudah kami terima.</p>
<p>Jumlah barang: {{.Items}}<br>Total: Rp {{.Total}}</p>`))
	statusTmpl = template.Must(template.New("status").Parse(
		`<p>Halo {{.Name}},</p>
<p>Status pesanan <strong>{{.OrderID}}</strong> sekarang {{.Status}}.</p>`))
)

type message struct {
	Subject string
	HTML    string
}

func subjectFor(taskType string, task OrderTask) string {
	switch taskType {
	case TaskOrderConfirmation:
		return "Pesanan diterima"
	case TaskOrderStatus:
		if task.To == "canceled" {
			return "Pesanan dibatalkan"
		}
		return "Status pesanan diperbarui"
	default:
		return fmt.Sprintf("Notifikasi %s", taskType)
	}
}

func render(taskType string, task OrderTask, name string) (message, error) {
	if name == "" {
		name = "Pelanggan"
	}
	var (
		buf  bytes.Buffer
		err  error
		data = map[string]any{"Name": name, "OrderID": task.OrderID}
	)
	switch taskType {
	case TaskOrderConfirmation:
		data["Items"] = task.Items
		data["Total"] = pricing.FormatPrice(pricing.Money(task.Total))
		err = confirmationTmpl.Execute(&buf, data)
	case TaskOrderStatus:
		label, ok := statusLabels[task.To]
		if !ok {
			label = task.To
		}
		data["Status"] = label
		err = statusTmpl.Execute(&buf, data)
	default:
		return message{}, fmt.Errorf("no template for %s", taskType)
	}
	if err != nil {
		return message{}, err
	}
	return message{Subject: subjectFor(taskType, task), HTML: buf.String()}, nil
}
