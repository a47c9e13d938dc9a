// Package render рисует картинку расписания занятий на неделю
package render

import (
	"bytes"
	"fmt"
	"image/color"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

// Константы размеров и отступов
const (
	imageWidth       = 1400
	imageHeight      = 900
	headerHeight     = 80
	leftLabelsWidth  = 70
	legendWidth      = 150
	dayPaddingX      = 8
	blockRadius      = 6.0
	shadowOffset     = 3.0
	daysShown        = 7
	hourPadding      = 1
	defaultFirstHour = 8
	defaultLastHour  = 20
)

// Цветовая схема
var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 255}
	hourLabelColor   = color.RGBA{110, 115, 120, 255}
	hourLineColor    = color.NRGBA{150, 150, 150, 120}
	todayBgColor     = color.NRGBA{255, 99, 71, 60}
	evenDayColor     = color.NRGBA{240, 240, 240, 255}
	oddDayColor      = color.NRGBA{228, 228, 228, 255}
	currentTimeColor = color.NRGBA{255, 80, 80, 200}
	blockTextColor   = color.RGBA{20, 24, 28, 255}
	shadowColor      = color.RGBA{0, 0, 0, 20}

	statusColors = map[model.SessionStatus]color.RGBA{
		model.SessionStatusPending:    {255, 214, 102, 230},
		model.SessionStatusConfirmed:  {133, 193, 85, 230},
		model.SessionStatusInProgress: {100, 160, 230, 230},
		model.SessionStatusCompleted:  {190, 190, 190, 230},
		model.SessionStatusCancelled:  {158, 158, 158, 160},
		model.SessionStatusNoShow:     {255, 182, 193, 230},
	}
	defaultBlockColor = color.RGBA{220, 220, 220, 200}
)

// hourRange диапазон часов [first, last] на картинке
type hourRange struct {
	first int
	last  int
}

func (h hourRange) total() int { return h.last - h.first + 1 }

// WeekImage рисует семь дней начиная с дня from в зоне loc и отмечает занятия.
// Подписи латиницей: встроенный шрифт не содержит кириллицы.
func WeekImage(sessions []*model.Session, from, now time.Time, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	start := dayStart(from.In(loc))
	now = now.In(loc)

	byDay := groupByDay(sessions, start, loc)
	hours := hoursFor(sessions, loc)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dayWidth := float64(imageWidth-leftLabelsWidth-legendWidth) / daysShown
	cellHeight := float64(imageHeight-headerHeight) / float64(hours.total())

	drawHeader(dc, start)
	drawHourLabels(dc, hours, cellHeight)
	for i := 0; i < daysShown; i++ {
		day := start.AddDate(0, 0, i)
		drawDay(dc, i, day, sameDay(day, now), byDay[i], hours, dayWidth, cellHeight)
	}
	drawCurrentTime(dc, start, now, hours, dayWidth, cellHeight)
	drawLegend(dc, dayWidth)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// groupByDay раскладывает занятия по индексу дня от start; вне недели отбрасываются
func groupByDay(sessions []*model.Session, start time.Time, loc *time.Location) map[int][]*model.Session {
	out := make(map[int][]*model.Session)
	for _, s := range sessions {
		begin := s.ScheduledStart.In(loc)
		for i := 0; i < daysShown; i++ {
			if sameDay(begin, start.AddDate(0, 0, i)) {
				out[i] = append(out[i], s)
				break
			}
		}
	}
	return out
}

// hoursFor диапазон часов, покрывающий все занятия с запасом
func hoursFor(sessions []*model.Session, loc *time.Location) hourRange {
	if len(sessions) == 0 {
		return hourRange{first: defaultFirstHour, last: defaultLastHour}
	}

	first, last := 23, 0
	for _, s := range sessions {
		begin, end := s.ScheduledStart.In(loc), s.ScheduledEnd.In(loc)
		if h := begin.Hour(); h < first {
			first = h
		}
		endHour := end.Hour()
		if end.Minute() > 0 {
			endHour++
		}
		// занятие до полуночи
		if !sameDay(begin, end) {
			endHour = 24
		}
		if endHour-1 > last {
			last = endHour - 1
		}
	}

	first -= hourPadding
	last += hourPadding
	if first < 0 {
		first = 0
	}
	if last > 23 {
		last = 23
	}
	return hourRange{first: first, last: last}
}

func drawHeader(dc *gg.Context, start time.Time) {
	end := start.AddDate(0, 0, daysShown-1)
	title := fmt.Sprintf("Sessions %s - %s", start.Format("02 Jan"), end.Format("02 Jan 2006"))

	dc.SetColor(textColor)
	dc.DrawStringAnchored(title, float64(imageWidth)/2, float64(headerHeight)/4, 0.5, 0.5)
}

func drawHourLabels(dc *gg.Context, hours hourRange, cellHeight float64) {
	dc.SetColor(hourLabelColor)
	for i := 0; i < hours.total(); i++ {
		y := float64(headerHeight) + float64(i)*cellHeight
		dc.DrawStringAnchored(fmt.Sprintf("%02d:00", hours.first+i), float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func drawDay(dc *gg.Context, idx int, day time.Time, today bool, sessions []*model.Session, hours hourRange, dayWidth, cellHeight float64) {
	x := float64(leftLabelsWidth) + float64(idx)*dayWidth
	top := float64(headerHeight)

	switch {
	case today:
		dc.SetColor(todayBgColor)
	case idx%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, top, dayWidth, float64(imageHeight-headerHeight))
	dc.Fill()

	dc.SetColor(hourLineColor)
	dc.SetLineWidth(1)
	for i := 0; i < hours.total(); i++ {
		y := top + float64(i)*cellHeight
		dc.DrawLine(x, y, x+dayWidth, y)
		dc.Stroke()
	}

	dc.SetColor(textColor)
	dc.DrawStringAnchored(day.Format("Mon 02.01"), x+dayWidth/2, top-18, 0.5, 0.5)

	for _, s := range sessions {
		drawSession(dc, s, day, x, hours, dayWidth, cellHeight)
	}
}

// offsetHours положение момента t в часах от начала сетки, с обрезкой по её краям
func offsetHours(t, day time.Time, hours hourRange) float64 {
	h := t.Sub(day).Hours() - float64(hours.first)
	if h < 0 {
		return 0
	}
	if limit := float64(hours.total()); h > limit {
		return limit
	}
	return h
}

func drawSession(dc *gg.Context, s *model.Session, day time.Time, x float64, hours hourRange, dayWidth, cellHeight float64) {
	loc := day.Location()
	y0 := float64(headerHeight) + offsetHours(s.ScheduledStart.In(loc), day, hours)*cellHeight
	y1 := float64(headerHeight) + offsetHours(s.ScheduledEnd.In(loc), day, hours)*cellHeight
	if y1-y0 < 8 {
		y1 = y0 + 8
	}

	bx := x + dayPaddingX
	bw := dayWidth - 2*dayPaddingX
	bh := y1 - y0 - 4

	dc.SetColor(shadowColor)
	dc.DrawRoundedRectangle(bx+shadowOffset, y0+2+shadowOffset, bw, bh, blockRadius)
	dc.Fill()

	fill, ok := statusColors[s.Status]
	if !ok {
		fill = defaultBlockColor
	}
	dc.SetColor(fill)
	dc.DrawRoundedRectangle(bx, y0+2, bw, bh, blockRadius)
	dc.Fill()

	dc.SetColor(darken(fill, 0.8))
	dc.DrawRoundedRectangle(bx, y0+2, bw, bh, blockRadius)
	dc.Stroke()

	dc.SetColor(blockTextColor)
	dc.DrawStringAnchored(fmt.Sprintf("%s #%d", s.ScheduledStart.In(loc).Format("15:04"), s.ID), bx+8, y0+16, 0, 0)
	if bh > 30 {
		dc.DrawStringAnchored(string(s.Status), bx+8, y0+32, 0, 0)
	}
}

func drawCurrentTime(dc *gg.Context, start, now time.Time, hours hourRange, dayWidth, cellHeight float64) {
	for i := 0; i < daysShown; i++ {
		day := start.AddDate(0, 0, i)
		if !sameDay(day, now) {
			continue
		}
		h := now.Sub(day).Hours()
		if h < float64(hours.first) || h > float64(hours.last+1) {
			return
		}
		x := float64(leftLabelsWidth) + float64(i)*dayWidth
		y := float64(headerHeight) + (h-float64(hours.first))*cellHeight
		dc.SetColor(currentTimeColor)
		dc.SetLineWidth(2)
		dc.DrawLine(x, y, x+dayWidth, y)
		dc.Stroke()
		return
	}
}

func drawLegend(dc *gg.Context, dayWidth float64) {
	x := float64(leftLabelsWidth) + daysShown*dayWidth + 14
	y := float64(imageHeight) - 200

	items := []model.SessionStatus{
		model.SessionStatusPending,
		model.SessionStatusConfirmed,
		model.SessionStatusInProgress,
		model.SessionStatusCompleted,
		model.SessionStatusNoShow,
	}
	for _, status := range items {
		dc.SetColor(statusColors[status])
		dc.DrawRoundedRectangle(x, y, 20, 14, 3)
		dc.Fill()

		dc.SetColor(textColor)
		dc.DrawStringAnchored(string(status), x+28, y+7, 0, 0.5)
		y += 28
	}
}

func darken(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}
