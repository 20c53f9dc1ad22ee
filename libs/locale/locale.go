// Package locale renders slot timestamps for human-facing text
// (provider notifications and cancellation emails).
package locale

import (
	"fmt"
	"strings"
	"time"
)

type Formatter interface {
	FormatSlot(t time.Time) string
	NewBookingNotice(customerName string, slot time.Time) string
}

var ptMonths = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

type portuguese struct{ loc *time.Location }

func (p portuguese) FormatSlot(t time.Time) string {
	t = t.In(p.loc)
	return fmt.Sprintf("dia %02d de %s, às %d:%02dh", t.Day(), ptMonths[t.Month()-1], t.Hour(), t.Minute())
}

func (p portuguese) NewBookingNotice(customerName string, slot time.Time) string {
	return fmt.Sprintf("Novo agendamento de %s para %s", customerName, p.FormatSlot(slot))
}

type english struct{ loc *time.Location }

func (e english) FormatSlot(t time.Time) string {
	return t.In(e.loc).Format("January 02 at 15:04")
}

func (e english) NewBookingNotice(customerName string, slot time.Time) string {
	return fmt.Sprintf("New appointment from %s for %s", customerName, e.FormatSlot(slot))
}

// New returns the formatter for lang ("pt" or "en"); unknown languages get "pt".
// A nil location means UTC.
func New(lang string, loc *time.Location) Formatter {
	if loc == nil {
		loc = time.UTC
	}
	switch strings.ToLower(strings.TrimSpace(lang)) {
	case "en", "en-us", "en-gb":
		return english{loc: loc}
	default:
		return portuguese{loc: loc}
	}
}
