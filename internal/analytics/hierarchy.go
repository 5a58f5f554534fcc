package analytics

import (
	"sort"
	"strings"
	"time"

	"commerce-analytics/internal/models"
	"commerce-analytics/internal/stats"

	"github.com/shopspring/decimal"
)

// CategoryNode is one category with its position in the tree and sales
// attributed to products assigned directly to it. The Subtree fields add
// every descendant's direct figures.
type CategoryNode struct {
	CategoryID          int64   `json:"category_id"`
	CategoryName        string  `json:"category_name"`
	ParentID            *int64  `json:"parent_id"`
	Level               int     `json:"level"`
	Path                []int64 `json:"path"`
	PathNames           string  `json:"path_names"`
	ProductCount        int     `json:"product_count"`
	ActiveProducts      int     `json:"active_products"`
	Revenue12m          float64 `json:"revenue_12m"`
	Units12m            int     `json:"units_12m"`
	SubtreeProductCount int     `json:"subtree_product_count"`
	SubtreeRevenue12m   float64 `json:"subtree_revenue_12m"`
	SubtreeUnits12m     int     `json:"subtree_units_12m"`
}

// arenaNode is a tree node addressed by index; parent is -1 for roots.
type arenaNode struct {
	cat      *models.Category
	parent   int
	children []int
	level    int
	path     []int64
}

type tree struct {
	nodes    []arenaNode
	preorder []int // depth-first, children by id: the path ordering
}

const (
	white = iota
	gray
	black
)

// buildTree arranges categories into an arena, computes level and path from
// the roots and rejects parent cycles. Children are ordered by id.
func buildTree(categories []*models.Category) (*tree, error) {
	sorted := append([]*models.Category(nil), categories...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	t := &tree{nodes: make([]arenaNode, len(sorted))}
	index := make(map[int64]int, len(sorted))
	for i, c := range sorted {
		index[c.ID] = i
		t.nodes[i] = arenaNode{cat: c, parent: -1}
	}
	var roots []int
	for i, c := range sorted {
		if c.ParentID == nil {
			roots = append(roots, i)
			continue
		}
		p, ok := index[*c.ParentID]
		if !ok {
			return nil, integrityError("category", c.ID, "parent %d not found", *c.ParentID)
		}
		t.nodes[i].parent = p
		t.nodes[p].children = append(t.nodes[p].children, i)
	}

	// Resolve level and path by walking each unresolved chain up to a
	// resolved ancestor or a root; meeting a gray node is a cycle.
	color := make([]int, len(t.nodes))
	var chain []int
	for i := range t.nodes {
		if color[i] == black {
			continue
		}
		chain = chain[:0]
		for n := i; n >= 0 && color[n] != black; n = t.nodes[n].parent {
			if color[n] == gray {
				return nil, integrityError("category", t.nodes[n].cat.ID, "parent cycle detected")
			}
			color[n] = gray
			chain = append(chain, n)
		}
		for k := len(chain) - 1; k >= 0; k-- {
			n := chain[k]
			node := &t.nodes[n]
			if node.parent < 0 {
				node.level = 1
				node.path = []int64{node.cat.ID}
			} else {
				parent := t.nodes[node.parent]
				node.level = parent.level + 1
				node.path = append(append(make([]int64, 0, len(parent.path)+1), parent.path...), node.cat.ID)
			}
			color[n] = black
		}
	}

	stack := make([]int, 0, len(roots))
	for k := len(roots) - 1; k >= 0; k-- {
		stack = append(stack, roots[k])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t.preorder = append(t.preorder, n)
		children := t.nodes[n].children
		for k := len(children) - 1; k >= 0; k-- {
			stack = append(stack, children[k])
		}
	}
	return t, nil
}

// CategoryHierarchy reports every category in path order with direct
// product counts and trailing twelve month sales, plus subtree totals rolled
// up from the leaves.
func (e *Engine) CategoryHierarchy(snap *Snapshot, asOf time.Time) ([]CategoryNode, error) {
	ds, err := e.prepare(snap)
	if err != nil {
		return nil, err
	}
	cats := make([]*models.Category, 0, len(ds.categories))
	for _, c := range ds.categories {
		cats = append(cats, c)
	}
	t, err := buildTree(cats)
	if err != nil {
		return nil, err
	}

	type direct struct {
		products int
		active   int
		revenue  decimal.Decimal
		units    int
	}
	byCategory := make(map[int64]*direct, len(cats))
	get := func(id int64) *direct {
		d, ok := byCategory[id]
		if !ok {
			d = &direct{}
			byCategory[id] = d
		}
		return d
	}
	for _, p := range ds.products {
		d := get(p.CategoryID)
		d.products++
		if p.IsActive {
			d.active++
		}
	}
	start := asOf.AddDate(-1, 0, 0)
	for _, it := range ds.items {
		if !within(ds.orderByID[it.OrderID].OrderedAt, start, asOf) {
			continue
		}
		d := get(ds.products[it.ProductID].CategoryID)
		d.revenue = d.revenue.Add(it.Revenue())
		d.units += it.Quantity
	}

	rows := make([]CategoryNode, len(t.nodes))
	subRevenue := make([]decimal.Decimal, len(t.nodes))
	for i, node := range t.nodes {
		d := get(node.cat.ID)
		names := make([]string, len(node.path))
		for k, id := range node.path {
			names[k] = ds.categories[id].Name
		}
		rows[i] = CategoryNode{
			CategoryID:          node.cat.ID,
			CategoryName:        node.cat.Name,
			ParentID:            node.cat.ParentID,
			Level:               node.level,
			Path:                node.path,
			PathNames:           strings.Join(names, " > "),
			ProductCount:        d.products,
			ActiveProducts:      d.active,
			Revenue12m:          stats.Round(money(d.revenue), 2),
			Units12m:            d.units,
			SubtreeProductCount: d.products,
			SubtreeUnits12m:     d.units,
		}
		subRevenue[i] = d.revenue
	}

	// reverse preorder visits children before their parent
	for k := len(t.preorder) - 1; k >= 0; k-- {
		n := t.preorder[k]
		if p := t.nodes[n].parent; p >= 0 {
			rows[p].SubtreeProductCount += rows[n].SubtreeProductCount
			rows[p].SubtreeUnits12m += rows[n].SubtreeUnits12m
			subRevenue[p] = subRevenue[p].Add(subRevenue[n])
		}
	}

	out := make([]CategoryNode, 0, len(t.preorder))
	for _, n := range t.preorder {
		row := rows[n]
		row.SubtreeRevenue12m = stats.Round(money(subRevenue[n]), 2)
		out = append(out, row)
	}
	return out, nil
}
