// Package telegram is the operator surface: a few commands for inspecting
// the bot and push notifications for trade events and fatal stops.
package telegram

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v3"

	"trading_assistant/internal/models"
	"trading_assistant/internal/orchestrator"
	"trading_assistant/internal/storage"
)

// Controller is the slice of the trading loop the bot talks to.
type Controller interface {
	Status() orchestrator.Status
	Stop()
}

type Bot struct {
	bot          *tele.Bot
	controller   Controller
	trades       storage.TradeStore
	authorizedID int64
	startTime    time.Time
	log          zerolog.Logger
}

func NewBot(token string, authorizedID int64, controller Controller,
	trades storage.TradeStore, log zerolog.Logger) (*Bot, error) {

	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}

	bot := &Bot{
		bot:          b,
		controller:   controller,
		trades:       trades,
		authorizedID: authorizedID,
		startTime:    time.Now(),
		log:          log.With().Str("component", "telegram").Logger(),
	}
	bot.setupHandlers()
	return bot, nil
}

func (b *Bot) Start() {
	b.log.Info().Msg("telegram bot started")
	b.bot.Start()
}

func (b *Bot) Shutdown() { b.bot.Stop() }

func (b *Bot) setupHandlers() {
	b.bot.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender().ID != b.authorizedID {
				return c.Send("Unauthorized")
			}
			return next(c)
		}
	})

	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/status", b.handleStatus)
	b.bot.Handle("/positions", b.handlePositions)
	b.bot.Handle("/stats", b.handleStats)
	b.bot.Handle("/stop", b.handleStop)
}

func (b *Bot) handleStart(c tele.Context) error {
	return c.Send(`*Trading assistant*

/status - loop status and daily P&L
/positions - open positions
/stats - per-strategy performance
/stop - stop the trading loop`, tele.ModeMarkdown)
}

func (b *Bot) handleStatus(c tele.Context) error {
	s := b.controller.Status()

	state := "stopped"
	if s.Running {
		state = "running"
	}
	lastCycle := "never"
	if !s.LastCycle.IsZero() {
		lastCycle = s.LastCycle.UTC().Format("15:04:05 MST")
	}
	msg := fmt.Sprintf(`*Status*: %s
Uptime: %s
Strategies: %s
Cycles: %d
Last cycle: %s
Open positions: %d
Daily P&L: %s USDT`,
		state,
		time.Since(b.startTime).Round(time.Second),
		strings.Join(s.Strategies, ", "),
		s.CyclesRun,
		lastCycle,
		len(s.OpenPositions),
		s.DailyPnL.StringFixed(2))
	return c.Send(msg, tele.ModeMarkdown)
}

func (b *Bot) handlePositions(c tele.Context) error {
	s := b.controller.Status()
	if len(s.OpenPositions) == 0 {
		return c.Send("No open positions")
	}

	var sb strings.Builder
	sb.WriteString("*Open positions*\n")
	for _, p := range s.OpenPositions {
		fmt.Fprintf(&sb, "\n%s %s\nSize: %s | Entry: %s\nUnrealized: %s USDT\n",
			strings.ToUpper(string(p.Side)), p.Symbol,
			p.Size.String(), p.EntryPrice.String(),
			p.UnrealizedPnL.StringFixed(2))
	}
	return c.Send(sb.String(), tele.ModeMarkdown)
}

func (b *Bot) handleStats(c tele.Context) error {
	trades, err := b.trades.QueryByDateRange(time.Time{}, time.Now().Add(time.Second))
	if err != nil {
		return c.Send("Stats unavailable: " + err.Error())
	}
	if len(trades) == 0 {
		return c.Send("No trades yet")
	}

	byStrategy := make(map[string][]*models.Trade)
	for _, t := range trades {
		byStrategy[t.StrategyName] = append(byStrategy[t.StrategyName], t)
	}
	names := make([]string, 0, len(byStrategy))
	for name := range byStrategy {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("*Strategy performance*\n")
	for _, name := range names {
		m := models.StrategyMetrics{StrategyName: name}
		m.Update(byStrategy[name])
		fmt.Fprintf(&sb, "\n*%s*\nTrades: %d | Win rate: %.0f%%\nP&L: %s USDT\n",
			name, m.TotalTrades, m.WinRate*100, m.TotalPnL.StringFixed(2))
	}
	return c.Send(sb.String(), tele.ModeMarkdown)
}

func (b *Bot) handleStop(c tele.Context) error {
	b.controller.Stop()
	return c.Send("Stop requested, the loop ends after the current symbol")
}

// TradeOpened pushes an entry notification to the operator.
func (b *Bot) TradeOpened(t *models.Trade) {
	msg := fmt.Sprintf(`*Opened* %s %s
Qty: %s @ %s
Strategy: %s`,
		strings.ToUpper(string(t.Side)), t.Symbol,
		t.Quantity.String(), t.Price.String(), t.StrategyName)
	if t.StopLoss != nil {
		msg += fmt.Sprintf("\nSL: %s", t.StopLoss.StringFixed(4))
	}
	if t.TakeProfit != nil {
		msg += fmt.Sprintf("\nTP: %s", t.TakeProfit.StringFixed(4))
	}
	b.send(msg)
}

// TradeClosed pushes an exit notification with the realized result.
func (b *Bot) TradeClosed(t *models.Trade) {
	pnl := "n/a"
	if t.PnL != nil {
		pnl = t.PnL.StringFixed(2) + " USDT"
	}
	b.send(fmt.Sprintf(`*Closed* %s
Qty: %s @ %s
P&L: %s`,
		t.Symbol, t.Quantity.String(), t.Price.String(), pnl))
}

// Halted is the loud path for fatal stops.
func (b *Bot) Halted(reason string) {
	b.send("*TRADING HALTED*\n" + reason + "\nRestart required.")
}

func (b *Bot) send(msg string) {
	if _, err := b.bot.Send(&tele.User{ID: b.authorizedID}, msg, tele.ModeMarkdown); err != nil {
		b.log.Warn().Err(err).Msg("telegram send failed")
	}
}
