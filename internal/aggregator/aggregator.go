// Package aggregator folds the signals emitted for one symbol in one cycle
// into a single directional decision.
package aggregator

import (
	"github.com/rs/zerolog"

	"trading_assistant/internal/models"
)

// Decision is an accepted directional call for a symbol. Representative is
// the strongest signal on the winning side; its price and advisory levels
// seed the trading engine.
type Decision struct {
	Symbol         string
	Type           models.SignalType
	Representative *models.TradingSignal
	BuyScore       float64
	SellScore      float64
}

// Aggregator scores buy and sell signals by confidence times strategy
// weight. A side wins only when it strictly beats the other side and clears
// the minimum combined strength.
type Aggregator struct {
	minStrength float64
	log         zerolog.Logger
}

func New(minStrength float64, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		minStrength: minStrength,
		log:         log.With().Str("component", "aggregator").Logger(),
	}
}

// Decide combines the cycle's signals for one symbol. weights maps strategy
// name to its configured weight; missing entries count as 1. open is the
// symbol's current position, nil when flat; a decision matching the open
// side is suppressed so an existing exposure is never re-entered.
func (a *Aggregator) Decide(symbol string, signals []*models.TradingSignal,
	weights map[string]float64, open *models.Position) *Decision {

	if len(signals) == 0 {
		return nil
	}

	var buyScore, sellScore float64
	var bestBuy, bestSell *models.TradingSignal
	for _, sig := range signals {
		if sig == nil || sig.Symbol != symbol {
			continue
		}
		w, ok := weights[sig.StrategyName]
		if !ok {
			w = 1
		}
		switch sig.Type {
		case models.SignalBuy:
			buyScore += sig.Confidence * w
			if bestBuy == nil || sig.Confidence > bestBuy.Confidence {
				bestBuy = sig
			}
		case models.SignalSell:
			sellScore += sig.Confidence * w
			if bestSell == nil || sig.Confidence > bestSell.Confidence {
				bestSell = sig
			}
		}
	}

	var winner models.SignalType
	var representative *models.TradingSignal
	switch {
	case buyScore > sellScore && buyScore > a.minStrength:
		winner, representative = models.SignalBuy, bestBuy
	case sellScore > buyScore && sellScore > a.minStrength:
		winner, representative = models.SignalSell, bestSell
	default:
		a.log.Debug().Str("symbol", symbol).
			Float64("buy_score", buyScore).Float64("sell_score", sellScore).
			Msg("no side dominates")
		return nil
	}

	if open != nil && sideOf(winner) == open.Side {
		a.log.Debug().Str("symbol", symbol).Str("side", string(open.Side)).
			Msg("decision matches open exposure, suppressed")
		return nil
	}

	a.log.Info().Str("symbol", symbol).Str("decision", string(winner)).
		Float64("buy_score", buyScore).Float64("sell_score", sellScore).
		Str("representative", representative.StrategyName).
		Msg("decision accepted")

	return &Decision{
		Symbol:         symbol,
		Type:           winner,
		Representative: representative,
		BuyScore:       buyScore,
		SellScore:      sellScore,
	}
}

func sideOf(t models.SignalType) models.TradeSide {
	if t == models.SignalBuy {
		return models.TradeBuy
	}
	return models.TradeSell
}
