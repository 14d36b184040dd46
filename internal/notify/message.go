package notify

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/wohnwert/wohnwert/internal/model"
	"github.com/wohnwert/wohnwert/internal/vienna"
)

// Message is one rendered notification ready for a transport.
type Message struct {
	Channel model.Channel `json:"channel"`
	URL     string        `json:"url"`
	Title   string        `json:"title"`
	Text    string        `json:"text"`
	Score   float64       `json:"score"`
	Profile string        `json:"profile"`
}

// Formatter renders listings into notification text with Austrian number
// formatting.
type Formatter struct {
	printer *message.Printer
}

func NewFormatter() *Formatter {
	return &Formatter{printer: message.NewPrinter(language.MustParse("de-AT"))}
}

// Render builds the notification for one listing. Missing fields are
// omitted rather than printed as zeros.
func (f *Formatter) Render(l model.Listing, ch model.Channel) Message {
	var b strings.Builder
	p := f.printer

	title := l.Title
	if title == "" {
		title = "Wohnung"
	}
	b.WriteString(title)
	b.WriteString("\n")

	if l.District != nil {
		p.Fprintf(&b, "📍 %s %s\n", *l.District, vienna.DistrictName(*l.District))
	}
	if l.PriceTotal != nil {
		p.Fprintf(&b, "💶 € %.0f", *l.PriceTotal)
		if l.PricePerM2 != nil {
			p.Fprintf(&b, " (€ %.0f/m²)", *l.PricePerM2)
		}
		b.WriteString("\n")
	}
	if l.AreaM2 != nil {
		p.Fprintf(&b, "📐 %.0f m²", *l.AreaM2)
		if l.Rooms != nil {
			p.Fprintf(&b, ", %.3g Zimmer", *l.Rooms)
		}
		b.WriteString("\n")
	}
	if l.YearBuilt != nil {
		p.Fprintf(&b, "🏗 Baujahr %.0f\n", *l.YearBuilt)
	}
	if l.UBahnWalkMinutes != nil {
		p.Fprintf(&b, "🚇 %.0f min zur U-Bahn\n", *l.UBahnWalkMinutes)
	}
	if l.SchoolWalkMinutes != nil {
		p.Fprintf(&b, "🏫 %.0f min zur Schule\n", *l.SchoolWalkMinutes)
	}
	if l.Score != nil {
		p.Fprintf(&b, "⭐ Score %.1f/100\n", *l.Score)
	}
	if l.Financials != nil {
		p.Fprintf(&b, "🏦 € %.0f/Monat (Kredit inkl. Nebenkosten)\n", l.Financials.MonthlyTotal)
		if l.Financials.TotalMonthlyCost != nil {
			p.Fprintf(&b, "💡 € %.0f/Monat gesamt\n", *l.Financials.TotalMonthlyCost)
		}
	}
	b.WriteString(l.URL)

	var score float64
	if l.Score != nil {
		score = *l.Score
	}
	return Message{
		Channel: ch,
		URL:     l.URL,
		Title:   title,
		Text:    b.String(),
		Score:   score,
		Profile: l.BuyerProfile,
	}
}

// RenderDigest joins several listings into one summary message.
func (f *Formatter) RenderDigest(listings []model.Listing, ch model.Channel) Message {
	var b strings.Builder
	p := f.printer

	p.Fprintf(&b, "Wochenübersicht: %d Wohnungen\n\n", len(listings))
	for i, l := range listings {
		p.Fprintf(&b, "%d. ", i+1)
		if l.Score != nil {
			p.Fprintf(&b, "[%.1f] ", *l.Score)
		}
		if l.Title != "" {
			b.WriteString(l.Title)
		} else {
			b.WriteString(l.URL)
		}
		if l.District != nil {
			p.Fprintf(&b, " (%s)", vienna.DistrictName(*l.District))
		}
		if l.PriceTotal != nil {
			p.Fprintf(&b, " € %.0f", *l.PriceTotal)
		}
		b.WriteString("\n")
		b.WriteString(l.URL)
		b.WriteString("\n")
	}

	return Message{
		Channel: ch,
		Title:   "Wochenübersicht",
		Text:    strings.TrimRight(b.String(), "\n"),
	}
}
