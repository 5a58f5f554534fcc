package analytics

import (
	"fmt"
	"testing"

	"commerce-analytics/internal/models"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTreeRejectsCycles(t *testing.T) {
	tests := map[string][]*models.Category{
		"self parent": {
			{ID: 1, Name: "Loop", ParentID: ref(1)},
		},
		"two node cycle": {
			{ID: 1, Name: "Root"},
			{ID: 2, Name: "A", ParentID: ref(3)},
			{ID: 3, Name: "B", ParentID: ref(2)},
		},
		"cycle below a valid chain": {
			{ID: 1, Name: "Root"},
			{ID: 2, Name: "A", ParentID: ref(1)},
			{ID: 3, Name: "B", ParentID: ref(5)},
			{ID: 4, Name: "C", ParentID: ref(3)},
			{ID: 5, Name: "D", ParentID: ref(4)},
		},
	}
	for name, cats := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := buildTree(cats)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDataIntegrity)
			assert.Contains(t, err.Error(), "cycle")
		})
	}
}

func TestCategoryHierarchyRejectsCycles(t *testing.T) {
	f := newFixture()
	f.snap.Categories[0].ParentID = ref(3) // Electronics under Laptops

	_, err := NewEngine(Config{}, nil).CategoryHierarchy(&f.snap, asOf)
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestCategoryHierarchy(t *testing.T) {
	f := newFixture().user(1, at("2023-01-01"))
	f.order(1, at("2024-05-01"), "200", line{10, 2, "100"})
	f.order(1, at("2024-06-01"), "1000", line{12, 1, "1000"})
	f.order(1, at("2024-06-02"), "60", line{13, 3, "20"})
	f.order(1, at("2023-06-01"), "150", line{11, 1, "150"}) // older than 12 months

	nodes, err := NewEngine(Config{}, nil).CategoryHierarchy(&f.snap, asOf)
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.CategoryID
	}
	assert.Equal(t, []int64{1, 2, 3, 4}, ids)

	electronics, phones, laptops, books := nodes[0], nodes[1], nodes[2], nodes[3]

	assert.Equal(t, 1, electronics.Level)
	assert.Equal(t, []int64{1}, electronics.Path)
	assert.Zero(t, electronics.ProductCount)
	assert.Zero(t, electronics.Revenue12m)
	assert.Equal(t, 3, electronics.SubtreeProductCount)
	assert.Equal(t, 1200.0, electronics.SubtreeRevenue12m)
	assert.Equal(t, 3, electronics.SubtreeUnits12m)

	assert.Equal(t, 2, phones.Level)
	assert.Equal(t, []int64{1, 2}, phones.Path)
	assert.Equal(t, "Electronics > Phones", phones.PathNames)
	assert.Equal(t, 2, phones.ProductCount)
	assert.Equal(t, 2, phones.ActiveProducts)
	assert.Equal(t, 200.0, phones.Revenue12m)
	assert.Equal(t, 2, phones.Units12m)

	assert.Equal(t, 0, laptops.ActiveProducts)
	assert.Equal(t, 1000.0, laptops.Revenue12m)

	assert.Nil(t, books.ParentID)
	assert.Equal(t, 60.0, books.Revenue12m)
	assert.Equal(t, 60.0, books.SubtreeRevenue12m)
}

// forest builds n categories where category i hangs under an earlier one
// picked by its seed, or is a root.
func forest(seeds []int) []*models.Category {
	cats := make([]*models.Category, len(seeds))
	for i, s := range seeds {
		c := &models.Category{ID: int64(i + 1), Name: fmt.Sprintf("c%d", i+1)}
		if p := s % (i + 1); p != i {
			c.ParentID = ref(int64(p + 1))
		}
		cats[i] = c
	}
	return cats
}

func TestBuildTreeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("paths match levels and extend the parent path", prop.ForAll(
		func(seeds []int) bool {
			tr, err := buildTree(forest(seeds))
			if err != nil {
				return false
			}
			if len(tr.preorder) != len(seeds) {
				return false
			}
			for _, n := range tr.nodes {
				if len(n.path) != n.level || n.path[len(n.path)-1] != n.cat.ID {
					return false
				}
				if n.parent < 0 {
					if n.level != 1 {
						return false
					}
					continue
				}
				parent := tr.nodes[n.parent].path
				if len(parent)+1 != len(n.path) {
					return false
				}
				for k := range parent {
					if parent[k] != n.path[k] {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.Property("preorder visits parents before children", prop.ForAll(
		func(seeds []int) bool {
			tr, err := buildTree(forest(seeds))
			if err != nil {
				return false
			}
			pos := make([]int, len(tr.nodes))
			for k, n := range tr.preorder {
				pos[n] = k
			}
			for i, n := range tr.nodes {
				if n.parent >= 0 && pos[n.parent] >= pos[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 1000)),
	))

	properties.TestingRun(t)
}
