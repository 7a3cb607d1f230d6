package tui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"

	"github.com/MRamiBalles/CookieClicker/internal/domain/economy"
)

// Screen layout. The cookie is the mouse target.
const (
	cookieX      = 2
	cookieY      = 4
	cookieWidth  = 12
	cookieHeight = 5
	shopY        = cookieY + cookieHeight + 1
	floaterX     = cookieX + cookieWidth + 2
)

var cookieArt = [cookieHeight]string{
	"   .-\"\"-.   ",
	"  / o  o \\  ",
	" |  o  o  | ",
	"  \\ o  o /  ",
	"   '-..-'   ",
}

var (
	styleDefault  = tcell.StyleDefault
	styleTitle    = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleCookie   = tcell.StyleDefault.Foreground(tcell.ColorOlive)
	styleFloater  = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleDisabled = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleHelp     = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleWarn     = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
)

// floater is the "+N" that drifts up from the cookie after a click.
type floater struct {
	text string
	born time.Time
}

const (
	floaterLife = time.Second
	floaterRise = 150 * time.Millisecond // one row per step
)

// frame is everything one redraw needs.
type frame struct {
	snap         economy.Snapshot
	floaters     []floater
	status       string
	confirmReset bool
	lastSave     time.Time
	now          time.Time
}

// inCookie reports whether a cell lies on the cookie.
func inCookie(x, y int) bool {
	return x >= cookieX && x < cookieX+cookieWidth && y >= cookieY && y < cookieY+cookieHeight
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, style)
	}
}

func render(s tcell.Screen, f frame) {
	s.Clear()

	drawText(s, 1, 0, styleTitle, "COOKIE CLICKER")
	drawText(s, 1, 1, styleDefault, fmt.Sprintf("Cookies: %s", humanize.Comma(f.snap.DisplayCurrency)))
	drawText(s, 1, 2, styleDefault, fmt.Sprintf("per second: %s   per click: %d", f.snap.DisplayRate, f.snap.ClickYield))

	for i, line := range cookieArt {
		drawText(s, cookieX, cookieY+i, styleCookie, line)
	}

	for _, fl := range f.floaters {
		age := f.now.Sub(fl.born)
		if age < 0 || age >= floaterLife {
			continue
		}
		y := cookieY + cookieHeight - 1 - int(age/floaterRise)
		if y < cookieY {
			y = cookieY
		}
		drawText(s, floaterX, y, styleFloater, fl.text)
	}

	for i, u := range f.snap.Upgrades {
		if i >= 9 {
			break
		}
		style := styleDefault
		if !u.Affordable {
			style = styleDisabled
		}
		drawText(s, 1, shopY+i, style, fmt.Sprintf("[%d] %-14s cost %-8s owned %d",
			i+1, u.Name, humanize.Comma(u.Cost), u.Count))
	}

	helpY := shopY + len(f.snap.Upgrades) + 1
	drawText(s, 1, helpY, styleHelp, "space/enter/mouse: click  1-9: buy  s: save  r: reset  q: quit")

	switch {
	case f.confirmReset:
		drawText(s, 1, helpY+1, styleWarn, "Reset ALL progress? y/n")
	case f.status != "":
		drawText(s, 1, helpY+1, styleDefault, f.status)
	case !f.lastSave.IsZero():
		drawText(s, 1, helpY+1, styleDisabled, "Saved "+humanize.RelTime(f.lastSave, f.now, "ago", "from now"))
	}

	s.Show()
}
