package service

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"order-tracking-service/internal/model"
)

const (
	DeliveryWindow      = "8:00 AM–6:00 PM"
	defaultDeliveryDays = 2
	// fin de la franja de entrega
	windowEndHour = 18
)

// Días de entrega por ciudad, en orden de búsqueda.
var cityDeliveryDays = []struct {
	City string
	Days int
}{
	{"Medellín", 1},
	{"Bogotá", 2},
	{"Cali", 3},
	{"Barranquilla", 4},
}

type Estimate struct {
	Date         time.Time `json:"date"`
	TimeWindow   string    `json:"timeWindow"`
	DeliveryDays int       `json:"deliveryDays"`
	City         string    `json:"city,omitempty"`
}

// EstimateDelivery calcula la fecha estimada de entrega. No modifica la orden.
// El día de creación se toma en loc (la zona del cliente); con loc nil se usa
// la zona que trae created_at.
func EstimateDelivery(o *model.Order, loc *time.Location) Estimate {
	city, days := deliveryDaysFor(o.Address)

	created := o.CreatedAt
	if loc != nil {
		created = created.In(loc)
	}
	date := time.Date(created.Year(), created.Month(), created.Day(), 0, 0, 0, 0, created.Location())
	date = date.AddDate(0, 0, days)
	for date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
		date = date.AddDate(0, 0, 1)
	}

	return Estimate{
		Date:         date,
		TimeWindow:   DeliveryWindow,
		DeliveryDays: days,
		City:         city,
	}
}

// IsOverdue es solo informativo: no dispara ninguna transición.
// Una orden está atrasada cuando now supera el fin de la franja del día estimado.
func IsOverdue(o *model.Order, est Estimate, now time.Time) bool {
	if IsTerminal(o.Status) {
		return false
	}
	return now.After(est.Date.Add(windowEndHour * time.Hour))
}

func deliveryDaysFor(address string) (string, int) {
	addr := foldText(address)
	for _, c := range cityDeliveryDays {
		if strings.Contains(addr, foldText(c.City)) {
			return c.City, c.Days
		}
	}
	return "", defaultDeliveryDays
}

// foldText quita tildes y pasa a minúsculas ("Bogotá" == "bogota").
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
