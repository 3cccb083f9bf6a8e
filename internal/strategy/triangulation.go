package strategy

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/daisel10/kairos/internal/schema"
)

// quoteAssets are the recognised quote currencies, longest suffixes first so
// BTCUSDT splits as BTC/USDT rather than BTCUSD/T.
var quoteAssets = []string{"USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "DAI", "EUR", "USD"}

type triEdge struct {
	weight float64
	symbol string
	side   schema.TradeSide
	price  decimal.Decimal
}

// Triangulation keeps a currency graph with edge weight −log(rate) and scans
// it with Bellman-Ford after each update. A negative cycle means the product
// of rates around the cycle exceeds one; the cycle's first leg is emitted as
// an order candidate.
type Triangulation struct {
	quantity decimal.Decimal

	// from -> to -> edge. Accessed from the runner goroutine only.
	edges map[string]map[string]triEdge
}

// NewTriangulation builds the scanner with a fixed per-leg order quantity.
func NewTriangulation(quantity decimal.Decimal) *Triangulation {
	return &Triangulation{
		quantity: quantity,
		edges:    make(map[string]map[string]triEdge),
	}
}

// Name implements Strategy.
func (t *Triangulation) Name() string { return "triangulation" }

// OnTick implements Strategy.
func (t *Triangulation) OnTick(tick schema.MarketTick) []schema.InternalOrder {
	base, quote, ok := splitSymbol(tick.Symbol)
	if !ok || !tick.Price.IsPositive() {
		return nil
	}
	rate, _ := tick.Price.Float64()
	if rate <= 0 {
		return nil
	}

	// Selling one base yields rate quote units; buying reverses it.
	t.setEdge(base, quote, triEdge{
		weight: -math.Log(rate),
		symbol: tick.Symbol,
		side:   schema.SideSell,
		price:  tick.Price,
	})
	t.setEdge(quote, base, triEdge{
		weight: math.Log(rate),
		symbol: tick.Symbol,
		side:   schema.SideBuy,
		price:  tick.Price,
	})

	leg, gain, found := t.negativeCycleLeg()
	if !found {
		return nil
	}

	// Quiet the pair until a fresh tick reprices it.
	t.dropPair(leg.symbol)

	price := leg.price
	score := t.quantity.Mul(price).Mul(decimal.NewFromFloat(gain))
	order := schema.NewInternalOrder(leg.symbol, leg.side, t.quantity, &price, score)
	return []schema.InternalOrder{order}
}

func (t *Triangulation) setEdge(from, to string, e triEdge) {
	adj := t.edges[from]
	if adj == nil {
		adj = make(map[string]triEdge)
		t.edges[from] = adj
	}
	adj[to] = e
}

func (t *Triangulation) dropPair(symbol string) {
	for from, adj := range t.edges {
		for to, e := range adj {
			if e.symbol == symbol {
				delete(adj, to)
			}
		}
		if len(adj) == 0 {
			delete(t.edges, from)
		}
	}
}

const cycleEpsilon = 1e-9

// negativeCycleLeg runs Bellman-Ford from a virtual source (all distances
// zero) and, when a negative cycle exists, returns its first edge together
// with the cycle's rate gain.
func (t *Triangulation) negativeCycleLeg() (triEdge, float64, bool) {
	index := make(map[string]int)
	var nodes []string
	for from, adj := range t.edges {
		if _, ok := index[from]; !ok {
			index[from] = len(nodes)
			nodes = append(nodes, from)
		}
		for to := range adj {
			if _, ok := index[to]; !ok {
				index[to] = len(nodes)
				nodes = append(nodes, to)
			}
		}
	}
	n := len(nodes)
	if n < 3 {
		return triEdge{}, 0, false
	}

	dist := make([]float64, n)
	pred := make([]int, n)
	for i := range pred {
		pred[i] = -1
	}

	relaxed := -1
	for i := 0; i < n; i++ {
		relaxed = -1
		for from, adj := range t.edges {
			u := index[from]
			for to, e := range adj {
				v := index[to]
				if dist[u]+e.weight < dist[v]-cycleEpsilon {
					dist[v] = dist[u] + e.weight
					pred[v] = u
					relaxed = v
				}
			}
		}
		if relaxed == -1 {
			return triEdge{}, 0, false
		}
	}

	// relaxed is reachable from a negative cycle; walk back n steps to land
	// on a vertex inside it.
	v := relaxed
	for i := 0; i < n; i++ {
		v = pred[v]
	}
	cycle := []int{v}
	for u := pred[v]; u != v; u = pred[u] {
		cycle = append(cycle, u)
	}
	// pred-walk collected the cycle backwards.
	for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
		cycle[i], cycle[j] = cycle[j], cycle[i]
	}

	var total float64
	for i := range cycle {
		from := nodes[cycle[i]]
		to := nodes[cycle[(i+1)%len(cycle)]]
		total += t.edges[from][to].weight
	}
	gain := math.Exp(-total) - 1
	if gain <= 0 {
		return triEdge{}, 0, false
	}

	first := t.edges[nodes[cycle[0]]][nodes[cycle[1]]]
	return first, gain, true
}

// splitSymbol separates a concatenated pair into base and quote assets.
func splitSymbol(symbol string) (base, quote string, ok bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, q := range quoteAssets {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return symbol[:len(symbol)-len(q)], q, true
		}
	}
	return "", "", false
}
